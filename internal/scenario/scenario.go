package scenario

import (
	"fmt"
	"slices"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/callin/internal/errors"
)

// MainThread is the name of the thread the scenario runner attaches itself as.
const MainThread = "main"

// Activation modes for a team.
const (
	ActivateNone = "none"
	ActivateMain = "main"
	ActivateAll  = "all"
)

// Original method operations.
const (
	OrigAdd   = "add"   // args[0] + value
	OrigConst = "const" // value
	OrigEcho  = "echo"  // args[0], or nil without arguments
	OrigFail  = "fail"  // error
)

// Before and after advice operations.
const (
	AdviceLog        = "log"
	AdviceFail       = "fail"
	AdviceDeactivate = "deactivate" // deactivate the team on the current thread
)

// Replace advice operations.
const (
	ReplacePassthrough = "passthrough"
	ReplaceDouble      = "double" // call next with args[0] doubled
	ReplaceVeto        = "veto"   // never call next
	ReplaceTwice       = "twice"  // call next twice and add the results
	ReplaceSuper       = "super"  // call next as a super base call
	ReplaceFail        = "fail"
)

var (
	origOps    = []string{OrigAdd, OrigConst, OrigEcho, OrigFail}
	adviceOps  = []string{AdviceLog, AdviceFail, AdviceDeactivate}
	replaceOps = []string{ReplacePassthrough, ReplaceDouble, ReplaceVeto, ReplaceTwice, ReplaceSuper, ReplaceFail}
	activation = []string{ActivateNone, ActivateMain, ActivateAll}
)

// Scenario is a complete scenario file.
type Scenario struct {
	Name     string `yaml:"name"`
	Parallel bool   `yaml:"parallel"` // run thread groups concurrently
	Bases    []Base `yaml:"bases"`
	Teams    []Team `yaml:"teams"`
	Calls    []Call `yaml:"calls"`
}

// Base is an interceptable base with its original methods.
type Base struct {
	Name    string   `yaml:"name"`
	Static  bool     `yaml:"static"` // calls go through the static dispatcher
	Methods []Method `yaml:"methods"`
}

// Method is one dispatch-table slot.
type Method struct {
	Name        string `yaml:"name"`
	ID          int32  `yaml:"id"`
	Constructor bool   `yaml:"constructor"`
	Op          string `yaml:"op"`
	Value       int    `yaml:"value"`
}

// Team is a team instance and its bindings.
type Team struct {
	Name        string    `yaml:"name"`
	Activate    string    `yaml:"activate"`
	Inheritable bool      `yaml:"inheritable"`
	Bindings    []Binding `yaml:"bindings"`
}

// Binding binds one base method under a callin id.
type Binding struct {
	Base    string   `yaml:"base"`
	Method  string   `yaml:"method"`
	Callin  int      `yaml:"callin"`
	Before  []string `yaml:"before"`
	Replace string   `yaml:"replace"`
	After   []string `yaml:"after"`
}

// Call triggers one join point.
type Call struct {
	Thread      string `yaml:"thread"`
	Base        string `yaml:"base"`
	Method      string `yaml:"method"`
	Args        []any  `yaml:"args"`
	Expect      any    `yaml:"expect"`
	ExpectError string `yaml:"expect_error"`
}

// Load reads and validates the scenario file at path.
func Load(fs afero.Fs, path string) (*Scenario, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scenario %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	return s, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "decoding yaml")
	}
	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scenario) applyDefaults() {
	for i := range s.Bases {
		for j := range s.Bases[i].Methods {
			if s.Bases[i].Methods[j].Op == "" {
				s.Bases[i].Methods[j].Op = OrigEcho
			}
		}
	}
	for i := range s.Teams {
		if s.Teams[i].Activate == "" {
			s.Teams[i].Activate = ActivateNone
		}
		for j := range s.Teams[i].Bindings {
			if s.Teams[i].Bindings[j].Replace == "" {
				s.Teams[i].Bindings[j].Replace = ReplacePassthrough
			}
		}
	}
	for i := range s.Calls {
		if s.Calls[i].Thread == "" {
			s.Calls[i].Thread = MainThread
		}
	}
}

// Validate checks names, references and operations.
func (s *Scenario) Validate() error {
	bases := make(map[string]*Base, len(s.Bases))
	for i := range s.Bases {
		b := &s.Bases[i]
		field := fmt.Sprintf("bases[%d]", i)
		if b.Name == "" {
			return invalid(field+".name", b.Name, "base name is required")
		}
		if bases[b.Name] != nil {
			return invalid(field+".name", b.Name, "duplicate base name")
		}
		bases[b.Name] = b

		names := make(map[string]bool)
		ids := make(map[int32]bool)
		for j, m := range b.Methods {
			mfield := fmt.Sprintf("%s.methods[%d]", field, j)
			switch {
			case m.Name == "":
				return invalid(mfield+".name", m.Name, "method name is required")
			case names[m.Name]:
				return invalid(mfield+".name", m.Name, "duplicate method name")
			case ids[m.ID]:
				return invalid(mfield+".id", m.ID, "duplicate method id")
			case m.ID < 0:
				return invalid(mfield+".id", m.ID, "method id must not be negative")
			case !slices.Contains(origOps, m.Op):
				return invalid(mfield+".op", m.Op, "unknown original operation")
			}
			names[m.Name] = true
			ids[m.ID] = true
		}
	}

	teams := make(map[string]bool, len(s.Teams))
	for i, t := range s.Teams {
		field := fmt.Sprintf("teams[%d]", i)
		if t.Name == "" {
			return invalid(field+".name", t.Name, "team name is required")
		}
		if teams[t.Name] {
			return invalid(field+".name", t.Name, "duplicate team name")
		}
		teams[t.Name] = true
		if !slices.Contains(activation, t.Activate) {
			return invalid(field+".activate", t.Activate, "unknown activation mode")
		}
		callins := make(map[int]bool, len(t.Bindings))
		for j, bd := range t.Bindings {
			bfield := fmt.Sprintf("%s.bindings[%d]", field, j)
			if bd.Callin < 0 {
				return invalid(bfield+".callin", bd.Callin, "callin id must not be negative")
			}
			if callins[bd.Callin] {
				return invalid(bfield+".callin", bd.Callin, "duplicate callin id")
			}
			callins[bd.Callin] = true
			if _, ok := lookupMethod(bases, bd.Base, bd.Method); !ok {
				return invalid(bfield, bd.Base+"."+bd.Method, "unknown base method")
			}
			for _, op := range slices.Concat(bd.Before, bd.After) {
				if !slices.Contains(adviceOps, op) {
					return invalid(bfield, op, "unknown advice operation")
				}
			}
			if !slices.Contains(replaceOps, bd.Replace) {
				return invalid(bfield+".replace", bd.Replace, "unknown replace operation")
			}
		}
	}

	for i, c := range s.Calls {
		if _, ok := lookupMethod(bases, c.Base, c.Method); !ok {
			return invalid(fmt.Sprintf("calls[%d]", i), c.Base+"."+c.Method, "unknown base method")
		}
	}
	return nil
}

func lookupMethod(bases map[string]*Base, base, method string) (Method, bool) {
	b, ok := bases[base]
	if !ok {
		return Method{}, false
	}
	for _, m := range b.Methods {
		if m.Name == method {
			return m, true
		}
	}
	return Method{}, false
}

func invalid(field string, value any, msg string) error {
	return errors.NewValidationError(msg).WithField(field).WithValue(value)
}

package scenario

import (
	"fmt"
	"strings"
	"sync"
)

// Trace phases besides the advice phases before, replace and after.
const (
	PhaseBase   = "base"
	PhaseReturn = "return"
	PhaseEvent  = "event"
)

// Entry is one step recorded while a scenario runs.
type Entry struct {
	Thread string
	Team   string // empty for base, return and event entries
	Phase  string
	Target string // "Base.method", or the event type
	Detail string
}

// String renders the entry on one line.
func (e Entry) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s]", e.Thread)
	if e.Team != "" {
		fmt.Fprintf(&sb, " %s", e.Team)
	}
	fmt.Fprintf(&sb, " %s %s", e.Phase, e.Target)
	if e.Detail != "" {
		fmt.Fprintf(&sb, " %s", e.Detail)
	}
	return sb.String()
}

// Result is the outcome of one call.
type Result struct {
	Index  int
	Call   Call
	Thread string
	Value  any
	Err    error
	Passed bool
	Reason string // why the call did not meet its expectation
}

// Report is everything a run recorded.
type Report struct {
	Scenario string
	Trace    []Entry
	Results  []Result
}

// Failures returns the results that did not meet their expectation.
func (r *Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, res)
		}
	}
	return out
}

type recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *recorder) add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// drain returns the recorded entries and starts a new trace.
func (r *recorder) drain() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = nil
	return out
}

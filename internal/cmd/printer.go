package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Iron-Ham/callin/internal/scenario"
)

// printer writes scenario reports, styled when the output is a terminal.
type printer struct {
	w      io.Writer
	styled bool

	thread lipgloss.Style
	team   lipgloss.Style
	phases map[string]lipgloss.Style
	pass   lipgloss.Style
	fail   lipgloss.Style
	faint  lipgloss.Style
}

func newPrinter(w io.Writer, color bool) *printer {
	r := lipgloss.NewRenderer(w)
	return &printer{
		w:      w,
		styled: color && isTerminal(w),
		thread: r.NewStyle().Foreground(lipgloss.Color("8")),
		team:   r.NewStyle().Bold(true),
		phases: map[string]lipgloss.Style{
			"before":             r.NewStyle().Foreground(lipgloss.Color("6")),
			"replace":            r.NewStyle().Foreground(lipgloss.Color("5")),
			"after":              r.NewStyle().Foreground(lipgloss.Color("4")),
			scenario.PhaseBase:   r.NewStyle().Foreground(lipgloss.Color("2")),
			scenario.PhaseReturn: r.NewStyle().Bold(true),
			scenario.PhaseEvent:  r.NewStyle().Foreground(lipgloss.Color("3")),
		},
		pass:  r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		faint: r.NewStyle().Faint(true),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) report(r *scenario.Report) {
	fmt.Fprintf(p.w, "%s %s\n", p.render(p.faint, "scenario"), r.Scenario)
	for _, e := range r.Trace {
		p.entry(e)
	}

	failed := 0
	for _, res := range r.Results {
		status := p.render(p.pass, "PASS")
		if !res.Passed {
			failed++
			status = p.render(p.fail, "FAIL")
		}
		outcome := fmt.Sprint(res.Value)
		if res.Err != nil {
			outcome = "error: " + res.Err.Error()
		}
		fmt.Fprintf(p.w, "%s #%d %s.%s on %s = %s", status, res.Index, res.Call.Base, res.Call.Method, res.Thread, outcome)
		if res.Reason != "" {
			fmt.Fprintf(p.w, " (%s)", res.Reason)
		}
		fmt.Fprintln(p.w)
	}
	fmt.Fprintf(p.w, "%d passed, %d failed\n", len(r.Results)-failed, failed)
}

func (p *printer) entry(e scenario.Entry) {
	fmt.Fprintf(p.w, "  %s ", p.render(p.thread, "["+e.Thread+"]"))
	if e.Team != "" {
		fmt.Fprintf(p.w, "%s ", p.render(p.team, e.Team))
	}
	fmt.Fprintf(p.w, "%s %s", p.render(p.phases[e.Phase], e.Phase), e.Target)
	if e.Detail != "" {
		fmt.Fprintf(p.w, " %s", e.Detail)
	}
	fmt.Fprintln(p.w)
}

func (p *printer) notice(format string, args ...any) {
	fmt.Fprintln(p.w, p.render(p.faint, fmt.Sprintf(format, args...)))
}

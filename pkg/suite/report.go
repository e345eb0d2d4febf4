package suite

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/fatih/color"
)

// ConsoleReporter prints case progress and a final summary.
type ConsoleReporter struct {
	Out     io.Writer
	NoColor bool
	// Verbose prints captured console messages for every case, not just
	// failed ones.
	Verbose bool
}

func (c *ConsoleReporter) paint(attrs ...color.Attribute) *color.Color {
	p := color.New(attrs...)
	if c.NoColor {
		p.DisableColor()
	}
	return p
}

func (c *ConsoleReporter) statusColor(s Status) *color.Color {
	switch s {
	case StatusPassed:
		return c.paint(color.FgGreen)
	case StatusFailed, StatusUnexpectedPass:
		return c.paint(color.FgRed, color.Bold)
	case StatusExpectedFailure:
		return c.paint(color.FgYellow)
	default:
		return c.paint(color.FgCyan)
	}
}

func (c *ConsoleReporter) TestStarted(name string) {
	fmt.Fprintf(c.Out, "[%s]\n", name)
}

func (c *ConsoleReporter) TestFinished(r TestResult) {
	label := c.statusColor(r.Status).Sprint(r.Status)
	if r.Reason != "" {
		fmt.Fprintf(c.Out, "  %s (%s) %s\n", label, r.Reason, r.Duration)
	} else {
		fmt.Fprintf(c.Out, "  %s %s\n", label, r.Duration)
	}
	for _, err := range r.Errors {
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Fprintf(c.Out, "    %s\n", line)
		}
	}
	if len(r.Console) > 0 && (r.Status.Failed() || c.Verbose) {
		for _, m := range r.Console {
			fmt.Fprintf(c.Out, "    console.%s: %s\n", m.Type, m.Text())
		}
	}
}

func (c *ConsoleReporter) TestSkipped(name, reason string) {
	label := c.statusColor(StatusSkipped).Sprint(StatusSkipped)
	if reason == "" {
		fmt.Fprintf(c.Out, "  %s: %s\n", label, name)
	} else {
		fmt.Fprintf(c.Out, "  %s: %s (%s)\n", label, name, reason)
	}
}

// PrintResults writes the run summary. When cases failed and rerun is not
// empty, it also prints a command that reruns just the failed cases; rerun
// is the command prefix, e.g. ["bugreport", "run", "suite.yaml"].
func (c *ConsoleReporter) PrintResults(r Results, rerun ...string) {
	counts := []Status{StatusPassed, StatusFailed, StatusExpectedFailure, StatusUnexpectedPass, StatusSkipped}
	var parts []string
	for _, s := range counts {
		if n := r.Count(s); n > 0 {
			parts = append(parts, c.statusColor(s).Sprintf("%d %s", n, s))
		}
	}
	fmt.Fprintf(c.Out, "%s: %d cases: %s\n", r.Suite, len(r.Tests), strings.Join(parts, ", "))

	if r.OK() {
		fmt.Fprintln(c.Out, c.paint(color.FgGreen).Sprint("All cases behaved as expected"))
		return
	}
	fmt.Fprintln(c.Out, c.paint(color.FgRed, color.Bold).Sprint("FAILED:"))
	for _, f := range r.Failures {
		fmt.Fprintf(c.Out, "  %s (%s)\n", f.Name, f.Status)
	}
	if len(rerun) > 0 {
		fmt.Fprintf(c.Out, "\nTo rerun the failed cases:\n  %s\n", RerunCommand(r, rerun...))
	}
}

// RerunCommand builds a shell command that reruns only the failed cases.
func RerunCommand(r Results, prefix ...string) string {
	var b commandBuilder
	b.add(prefix...)
	for _, f := range r.Failures {
		b.add("--run", "^"+regexp.QuoteMeta(f.Name)+"$")
	}
	return b.String()
}

type commandBuilder []string

func (b *commandBuilder) add(args ...string) {
	for _, a := range args {
		*b = append(*b, shellescape.Quote(a))
	}
}

func (b commandBuilder) String() string {
	return strings.Join(b, " ")
}

package suite

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thesyncim/bugreport/pkg/driver"
)

func sampleResults() Results {
	var r Results
	r.Suite = "bug report"
	r.add(TestResult{Name: "fetch works", Status: StatusPassed, Duration: 120 * time.Millisecond})
	r.add(TestResult{
		Name:     "useFetcher works",
		Status:   StatusUnexpectedPass,
		Reason:   "non-route load",
		Errors:   []error{errors.New("expected failure did not occur")},
		Duration: time.Second,
		Console: []driver.ConsoleMessage{
			{Type: "error", Args: []any{map[string]any{"status": float64(404)}}},
		},
	})
	r.add(TestResult{Name: "it's skipped", Status: StatusSkipped, Reason: "filtered"})
	return r
}

func TestConsoleReporter_TestFinished(t *testing.T) {
	var buf bytes.Buffer
	rep := &ConsoleReporter{Out: &buf, NoColor: true}

	r := sampleResults()
	rep.TestStarted(r.Tests[1].Name)
	rep.TestFinished(r.Tests[1])
	rep.TestSkipped("it's skipped", "filtered")

	assert.Equal(t, "[useFetcher works]\n"+
		"  XPASS (non-route load) 1s\n"+
		"    expected failure did not occur\n"+
		"    console.error: {\"status\":404}\n"+
		"  SKIP: it's skipped (filtered)\n", buf.String())
}

func TestConsoleReporter_ConsoleOnlyOnFailureUnlessVerbose(t *testing.T) {
	res := TestResult{
		Name:    "fetch works",
		Status:  StatusPassed,
		Console: []driver.ConsoleMessage{{Type: "log", Args: []any{"hi"}}},
	}

	var buf bytes.Buffer
	(&ConsoleReporter{Out: &buf, NoColor: true}).TestFinished(res)
	assert.NotContains(t, buf.String(), "console.log")

	buf.Reset()
	(&ConsoleReporter{Out: &buf, NoColor: true, Verbose: true}).TestFinished(res)
	assert.Contains(t, buf.String(), "console.log: hi")
}

func TestConsoleReporter_PrintResults(t *testing.T) {
	var buf bytes.Buffer
	rep := &ConsoleReporter{Out: &buf, NoColor: true}
	rep.PrintResults(sampleResults(), "bugreport", "run", "my suite.yaml")

	out := buf.String()
	assert.Contains(t, out, "bug report: 3 cases: 1 PASS, 1 XPASS, 1 SKIP\n")
	assert.Contains(t, out, "FAILED:\n  useFetcher works (XPASS)\n")
	assert.Contains(t, out, "bugreport run 'my suite.yaml' --run '^useFetcher works$'")
}

func TestConsoleReporter_PrintResultsOK(t *testing.T) {
	var r Results
	r.Suite = "ok"
	r.add(TestResult{Name: "a", Status: StatusPassed})
	r.add(TestResult{Name: "b", Status: StatusExpectedFailure})

	var buf bytes.Buffer
	(&ConsoleReporter{Out: &buf, NoColor: true}).PrintResults(r, "bugreport")
	assert.Equal(t, "ok: 2 cases: 1 PASS, 1 XFAIL\nAll cases behaved as expected\n", buf.String())
}

func TestRerunCommand(t *testing.T) {
	var r Results
	r.add(TestResult{Name: "a.b (x)", Status: StatusFailed})
	r.add(TestResult{Name: "it's", Status: StatusUnexpectedPass})

	got := RerunCommand(r, "bugreport", "run", "suite.yaml")
	assert.Equal(t, `bugreport run suite.yaml --run '^a\.b \(x\)$' --run '^it'"'"'s$'`, got)
}

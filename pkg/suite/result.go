package suite

import (
	"fmt"
	"time"

	"github.com/thesyncim/bugreport/pkg/driver"
)

// Status is the outcome of one case.
type Status int

const (
	StatusPassed Status = iota
	StatusFailed
	// StatusExpectedFailure: an expect_failure case failed as documented.
	StatusExpectedFailure
	// StatusUnexpectedPass: an expect_failure case passed; the defect it
	// documents may be fixed.
	StatusUnexpectedPass
	StatusSkipped
)

// String returns the short report label of the Status.
func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFailed:
		return "FAIL"
	case StatusExpectedFailure:
		return "XFAIL"
	case StatusUnexpectedPass:
		return "XPASS"
	case StatusSkipped:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Failed reports whether the status counts against the run.
func (s Status) Failed() bool {
	return s == StatusFailed || s == StatusUnexpectedPass
}

// Results collects the outcome of a suite run.
type Results struct {
	Suite    string
	Tests    []TestResult
	Failures []TestResult
}

// TestResult is the outcome of one case.
type TestResult struct {
	Name     string
	Status   Status
	Errors   []error
	Reason   string // expect_failure reason or skip reason
	Console  []driver.ConsoleMessage
	Duration time.Duration
}

// OK reports whether no case failed.
func (r Results) OK() bool {
	return len(r.Failures) == 0
}

// Count returns how many cases ended with status s.
func (r Results) Count(s Status) int {
	n := 0
	for _, t := range r.Tests {
		if t.Status == s {
			n++
		}
	}
	return n
}

func (r *Results) add(t TestResult) {
	r.Tests = append(r.Tests, t)
	if t.Status.Failed() {
		r.Failures = append(r.Failures, t)
	}
}

// TestFailure ties an error to the case that produced it.
type TestFailure struct {
	Name string
	Err  error
}

func (f TestFailure) Error() string {
	return fmt.Sprintf("[%s]: %s", f.Name, f.Err)
}

func (f TestFailure) Unwrap() error { return f.Err }

// Package clock abstracts time for the suite runner so durations can be
// asserted deterministically in tests.
package clock

import "time"

// Clock is an interface for obtaining monotonic time.
type Clock interface {
	// Now returns the current time. Implementations must return
	// monotonically increasing time values.
	Now() time.Time
}

// Monotonic is a Clock backed by time.Now, which carries a monotonic
// reading in Go.
type Monotonic struct{}

// Now returns the current system time with monotonic clock reading.
func (Monotonic) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Mock is a Clock for tests that only moves when told to.
// It is not safe for concurrent use.
type Mock struct {
	current time.Time
	step    time.Duration
}

// NewMock creates a Mock initialized to t. If t is zero it starts at a
// fixed, non-zero instant.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Unix(1000000000, 0) // 2001-09-09
	}
	return &Mock{current: t}
}

// Now returns the mock clock's current time, then advances it by the
// configured step.
func (m *Mock) Now() time.Time {
	now := m.current
	m.current = m.current.Add(m.step)
	return now
}

// Advance moves the clock forward by d.
// Panics if d is negative to maintain monotonicity.
func (m *Mock) Advance(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.Advance: duration must be non-negative")
	}
	m.current = m.current.Add(d)
}

// SetStep makes every call to Now advance the clock by d afterwards.
func (m *Mock) SetStep(d time.Duration) {
	if d < 0 {
		panic("clock.Mock.SetStep: duration must be non-negative")
	}
	m.step = d
}

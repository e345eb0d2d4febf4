package driver

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNavigation is matched by every *NavigationError.
	ErrNavigation = errors.New("navigation failed")
	// ErrQueryTimeout is matched by every *QueryTimeoutError.
	ErrQueryTimeout = errors.New("query timed out")
	// ErrNotSettled is returned by DOM queries before a navigation settled.
	ErrNotSettled = errors.New("page has not settled; call Goto first")
	// ErrBusy is returned by Goto while another navigation is in flight.
	ErrBusy = errors.New("navigation already in progress")
	// ErrClosed is returned when a closed Driver is used.
	ErrClosed = errors.New("driver closed")
)

// NavigationError reports a Goto that timed out or failed at the network
// level. It fails the individual test.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNavigation, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

func (e *NavigationError) Is(target error) bool { return target == ErrNavigation }

// QueryTimeoutError reports an element that did not appear in time. In a
// bug report this usually means client-side data loading never completed.
type QueryTimeoutError struct {
	Selector string
	Timeout  time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s did not appear within %s", ErrQueryTimeout, e.Selector, e.Timeout)
}

func (e *QueryTimeoutError) Is(target error) bool { return target == ErrQueryTimeout }

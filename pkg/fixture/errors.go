package fixture

import (
	"errors"
	"fmt"
)

// ErrBuild is the sentinel matched by every *BuildError.
var ErrBuild = errors.New("fixture build failed")

// ErrClosed is returned when a closed Fixture is used.
var ErrClosed = errors.New("fixture closed")

// BuildError reports a file that could not be materialized or compiled.
// A build failure is fatal to the suite that requested it.
type BuildError struct {
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", ErrBuild, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", ErrBuild, e.Path, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrBuild) true for any BuildError.
func (e *BuildError) Is(target error) bool { return target == ErrBuild }

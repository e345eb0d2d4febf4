// Package suite runs declarative bug reports: a file set describing a
// fixture app plus a list of browser cases checked against it.
//
// A suite file looks like:
//
//	name: useFetcher non-route load
//	files:
//	  app/routes/_index.html: |
//	    ...
//	  public/static/test.json: '{"foo":"bar"}'
//	intercept:
//	  - pattern: _data
//	    delay: 50ms
//	cases:
//	  - name: fetch works
//	    goto: /fetch
//	    expect: {selector: "#fetchID", contains: "fetch() works!"}
//	  - name: useFetcher loads non-route files
//	    goto: /
//	    expect: {selector: "#useFetcherID"}
//	    expect_failure: useFetcher treats every href as a route
//
// The fixture is built once per suite and served by a single App Instance;
// every case gets its own page.
package suite

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thesyncim/bugreport/pkg/fixture"
)

// Suite is one bug report.
type Suite struct {
	Name      string          `yaml:"name"`
	Files     fixture.FileSet `yaml:"files"`
	Intercept []Intercept     `yaml:"intercept,omitempty"`
	Cases     []Case          `yaml:"cases"`
}

// Intercept is applied to every case's page before navigation.
type Intercept struct {
	Pattern string        `yaml:"pattern"`
	Delay   time.Duration `yaml:"delay,omitempty"`
	// Abort fails matching requests with this network error reason
	// (e.g. "Failed", "ConnectionRefused") instead of delaying them.
	Abort string `yaml:"abort,omitempty"`

	re *regexp.Regexp
}

// Regexp returns the compiled pattern. Valid after Validate.
func (i Intercept) Regexp() *regexp.Regexp {
	return i.re
}

// Case is one browser check.
type Case struct {
	Name   string      `yaml:"name"`
	Goto   string      `yaml:"goto"`
	Expect Expectation `yaml:"expect"`

	// ExpectFailure documents a known defect. The case passes when its
	// expectation fails and fails when the expectation unexpectedly holds.
	ExpectFailure string `yaml:"expect_failure,omitempty"`
}

// Expectation is checked after navigation settles.
type Expectation struct {
	Selector string `yaml:"selector"`
	Contains string `yaml:"contains,omitempty"`
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a suite. Unknown keys are rejected.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing suite: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the suite and compiles intercept patterns.
func (s *Suite) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if len(s.Files) == 0 {
		errs = append(errs, errors.New("files must not be empty"))
	} else if err := s.Files.Validate(); err != nil {
		errs = append(errs, err)
	}
	for k := range s.Intercept {
		ic := &s.Intercept[k]
		re, err := regexp.Compile(ic.Pattern)
		if err != nil || ic.Pattern == "" {
			errs = append(errs, fmt.Errorf("intercept[%d]: invalid pattern %q", k, ic.Pattern))
			continue
		}
		if ic.Delay < 0 {
			errs = append(errs, fmt.Errorf("intercept[%d]: negative delay", k))
		}
		if ic.Delay > 0 && ic.Abort != "" {
			errs = append(errs, fmt.Errorf("intercept[%d]: delay and abort are exclusive", k))
		}
		ic.re = re
	}
	if len(s.Cases) == 0 {
		errs = append(errs, errors.New("at least one case is required"))
	}
	seen := make(map[string]bool, len(s.Cases))
	for k, c := range s.Cases {
		switch {
		case c.Name == "":
			errs = append(errs, fmt.Errorf("cases[%d]: name is required", k))
		case seen[c.Name]:
			errs = append(errs, fmt.Errorf("cases[%d]: duplicate name %q", k, c.Name))
		}
		seen[c.Name] = true
		if c.Goto == "" {
			errs = append(errs, fmt.Errorf("cases[%d]: goto is required", k))
		}
		if c.Expect.Selector == "" {
			errs = append(errs, fmt.Errorf("cases[%d]: expect.selector is required", k))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid suite: %w", errors.Join(errs...))
	}
	return nil
}

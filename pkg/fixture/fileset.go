package fixture

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FileSet maps a relative, slash-separated path to literal file content.
// Keys are framework paths such as "app/routes/_index.html" or
// "public/static/test.json"; values are opaque to the builder except for
// route modules.
type FileSet map[string]string

// Paths returns the file paths in lexical order.
func (fs FileSet) Paths() []string {
	paths := make([]string, 0, len(fs))
	for p := range fs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Validate checks that every path is relative and stays inside the root.
func (fs FileSet) Validate() error {
	for _, p := range fs.Paths() {
		if err := validatePath(p); err != nil {
			return &BuildError{Path: p, Err: err}
		}
	}
	return nil
}

func validatePath(p string) error {
	if p == "" {
		return fmt.Errorf("empty path")
	}
	if strings.Contains(p, `\`) {
		return fmt.Errorf("path must use forward slashes")
	}
	if path.IsAbs(p) {
		return fmt.Errorf("path must be relative")
	}
	clean := path.Clean(p)
	if clean != p {
		return fmt.Errorf("path is not clean (want %q)", clean)
	}
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path escapes the fixture root")
	}
	return nil
}

// WriteTo materializes the set under dir, creating parent directories.
func (fs FileSet) WriteTo(dir string) error {
	for _, p := range fs.Paths() {
		dst := filepath.Join(dir, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return &BuildError{Path: p, Err: err}
		}
		if err := os.WriteFile(dst, []byte(fs[p]), 0o644); err != nil {
			return &BuildError{Path: p, Err: err}
		}
	}
	return nil
}

// ReadDir loads a FileSet from an app directory on disk. Only the app/ and
// public/ trees are read.
func ReadDir(dir string) (FileSet, error) {
	fs := FileSet{}
	for _, root := range []string{"app", "public"} {
		base := filepath.Join(dir, root)
		if _, err := os.Stat(base); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			fs[filepath.ToSlash(rel)] = string(data)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", base, err)
		}
	}
	return fs, nil
}

// Dedent removes the indentation shared by all non-blank lines and trims
// leading and trailing blank lines, so file contents can be written inline
// in Go raw strings.
func Dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return ""
	}

	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.Join(lines, "\n") + "\n"
	}

	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n") + "\n"
}

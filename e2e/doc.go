//go:build e2e

// Package e2e holds the browser-driven bug reports.
//
// These tests are isolated from the standard test suite via build tags.
// They require a Chrome browser (auto-downloaded by Rod if not present)
// and are intended for CI pipelines or explicit local testing.
//
// Running E2E tests:
//
//	go test -tags=e2e ./e2e/...
//
// Running all tests except E2E:
//
//	go test ./...
//
// E2E tests use:
//   - pkg/fixture to build the bug report app once for the package
//   - pkg/appserver to serve it as a single App Instance
//   - pkg/browser and pkg/driver for Chrome, one fresh page per test
//
// Test isolation:
// Tests share the fixture, the App Instance and Chrome; each test gets its
// own page, network interceptions and console capture. TestMain closes the
// App Instance exactly once after every test has run.
package e2e

// Package shared holds helpers used across packages that belong to no single
// layer.
//
// The testutil subpackage provides a capturing slog handler so tests can
// assert on what services, validators and commands log.
package shared

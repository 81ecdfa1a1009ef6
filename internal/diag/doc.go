// Package diag carries diagnostics out of the physics engine.
//
// A [Registry] holds two hooks:
//
//   - a trace hook receiving bounded [Record] values (severity, text of at
//     most [MaxTextLen] bytes, source location)
//   - an assertion hook receiving an [AssertReport] and returning whether
//     the caller should halt
//
// Hooks are installed once, before the engine factory exists, and may be
// called concurrently from worker goroutines during a step.
//
// # Build modes
//
// Assertions are enabled when the module is built with the debug tag:
//
//	go build -tags debug ./...
//
// Release builds skip the assertion hook entirely. [Registry.SetAssertsEnabled]
// overrides the default per registry.
package diag

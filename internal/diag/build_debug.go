//go:build debug

package diag

// DebugBuild reports whether assertions are compiled in by default.
const DebugBuild = true

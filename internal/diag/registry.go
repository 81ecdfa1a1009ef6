package diag

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
)

var ErrHooksInstalled = errors.New("diag: hooks already installed")

// TraceFunc receives rendered trace records. It may be called from several
// goroutines at once.
type TraceFunc func(Record)

// AssertFunc receives a failed assertion and returns true when the caller
// should stop at a breakpoint. The result is advisory.
type AssertFunc func(AssertReport) bool

type hooks struct {
	trace  TraceFunc
	assert AssertFunc
}

// Registry owns the diagnostic hooks of one engine lifecycle. A nil
// *Registry is valid and discards everything.
type Registry struct {
	hooks    atomic.Pointer[hooks]
	asserts  atomic.Bool
	failures atomic.Uint64
}

func NewRegistry() *Registry {
	r := &Registry{}
	r.asserts.Store(DebugBuild)
	return r
}

// Install sets both hooks. It can only succeed once per registry.
func (r *Registry) Install(trace TraceFunc, assert AssertFunc) error {
	if !r.hooks.CompareAndSwap(nil, &hooks{trace: trace, assert: assert}) {
		return ErrHooksInstalled
	}
	return nil
}

func (r *Registry) Installed() bool {
	return r != nil && r.hooks.Load() != nil
}

func (r *Registry) SetAssertsEnabled(enabled bool) {
	if r != nil {
		r.asserts.Store(enabled)
	}
}

func (r *Registry) AssertsEnabled() bool {
	return r != nil && r.asserts.Load()
}

// Failures returns the number of assertion failures reported so far.
func (r *Registry) Failures() uint64 {
	if r == nil {
		return 0
	}
	return r.failures.Load()
}

func (r *Registry) Trace(sev Severity, text string) {
	r.emit(sev, text)
}

func (r *Registry) Tracef(sev Severity, format string, args ...any) {
	if !r.Installed() {
		return
	}
	r.emit(sev, fmt.Sprintf(format, args...))
}

// emit must be called directly from an exported method so the caller
// location resolves to the code that traced.
func (r *Registry) emit(sev Severity, text string) {
	if r == nil {
		return
	}
	h := r.hooks.Load()
	if h == nil || h.trace == nil {
		return
	}
	_, file, line, _ := runtime.Caller(2)
	h.trace(NewRecord(sev, text, file, line))
}

// Assert reports a failed condition to the assertion hook when assertions
// are enabled. It returns the hook's halt decision, false otherwise.
func (r *Registry) Assert(cond bool, expr, msg string) bool {
	if cond || !r.AssertsEnabled() {
		return false
	}
	r.failures.Add(1)
	h := r.hooks.Load()
	if h == nil || h.assert == nil {
		return false
	}
	_, file, line, _ := runtime.Caller(1)
	return h.assert(AssertReport{
		Expression: expr,
		Message:    msg,
		File:       file,
		Line:       line,
	})
}

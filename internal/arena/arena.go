// Package arena provides the fixed-capacity scratch memory used during a
// simulation step. Everything allocated from an Arena is invalidated by the
// next Reset.
package arena

import (
	"errors"
	"fmt"
	"unsafe"
)

// DefaultCapacity is the scratch budget of one driver.
const DefaultCapacity = 10 * 1024 * 1024

const align = 16

var (
	ErrExhausted       = errors.New("arena: capacity exhausted")
	ErrInvalidCapacity = errors.New("arena: capacity must be positive")
	ErrReleased        = errors.New("arena: released")
)

// Allocator hands out scratch memory.
type Allocator interface {
	Allocate(size int) ([]byte, error)
}

// Arena is a bump allocator over one fixed buffer. It is not safe for
// concurrent use; allocate on the stepping goroutine and hand slices to
// workers.
type Arena struct {
	buf       []byte
	top       int
	highWater int
}

func New(capacity int) (*Arena, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, capacity)
	}
	return &Arena{buf: make([]byte, capacity)}, nil
}

// Allocate returns size zeroed bytes aligned to 16.
func (a *Arena) Allocate(size int) ([]byte, error) {
	if a.buf == nil {
		return nil, ErrReleased
	}
	if size < 0 {
		return nil, fmt.Errorf("arena: negative size %d", size)
	}
	start := (a.top + align - 1) &^ (align - 1)
	end := start + size
	if end > len(a.buf) {
		return nil, fmt.Errorf("%w: need %d bytes, %d free", ErrExhausted, size, len(a.buf)-start)
	}
	a.top = end
	if a.top > a.highWater {
		a.highWater = a.top
	}
	mem := a.buf[start:end:end]
	clear(mem)
	return mem, nil
}

// Reset drops every allocation.
func (a *Arena) Reset() {
	a.top = 0
}

// Release frees the backing buffer. The arena cannot be used afterwards.
func (a *Arena) Release() {
	a.buf = nil
	a.top = 0
}

func (a *Arena) Capacity() int  { return len(a.buf) }
func (a *Arena) Used() int      { return a.top }
func (a *Arena) HighWater() int { return a.highWater }

// Make allocates a slice of n values of T from alloc. T must not contain
// pointers: the garbage collector does not scan arena memory.
func Make[T any](alloc Allocator, n int) ([]T, error) {
	if n == 0 {
		return nil, nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 {
		return make([]T, n), nil
	}
	if int(unsafe.Alignof(zero)) > align {
		return nil, fmt.Errorf("arena: alignment %d of %T not supported", unsafe.Alignof(zero), zero)
	}
	mem, err := alloc.Allocate(size * n)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(mem))), n), nil
}

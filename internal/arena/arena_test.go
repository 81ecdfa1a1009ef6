package arena

import (
	"errors"
	"testing"
	"unsafe"
)

func TestNewInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := New(c); !errors.Is(err, ErrInvalidCapacity) {
			t.Errorf("New(%d): expected ErrInvalidCapacity, got %v", c, err)
		}
	}
}

func TestAllocateAligned(t *testing.T) {
	a, err := New(1024)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	b1, err := a.Allocate(3)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	b2, err := a.Allocate(8)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(b1) != 3 || cap(b1) != 3 {
		t.Errorf("unexpected first block len=%d cap=%d", len(b1), cap(b1))
	}
	if uintptr(unsafe.Pointer(&b2[0]))%align != uintptr(unsafe.Pointer(&b1[0]))%align {
		t.Error("second block not aligned like the first")
	}
	if a.Used() != align+8 {
		t.Errorf("expected used %d, got %d", align+8, a.Used())
	}
}

func TestExhaustion(t *testing.T) {
	a, _ := New(64)

	if _, err := a.Allocate(64); err != nil {
		t.Fatalf("allocate full capacity: %v", err)
	}
	if _, err := a.Allocate(1); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
}

func TestResetReusesMemory(t *testing.T) {
	a, _ := New(128)

	b, _ := a.Allocate(16)
	b[0] = 42
	a.Reset()

	if a.Used() != 0 {
		t.Errorf("expected 0 used after reset, got %d", a.Used())
	}
	again, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("allocate after reset: %v", err)
	}
	if again[0] != 0 {
		t.Error("allocation after reset not zeroed")
	}
	if a.HighWater() != 16 {
		t.Errorf("expected high water 16, got %d", a.HighWater())
	}
}

func TestRelease(t *testing.T) {
	a, _ := New(128)
	a.Release()

	if _, err := a.Allocate(1); !errors.Is(err, ErrReleased) {
		t.Errorf("expected ErrReleased, got %v", err)
	}
	if a.Capacity() != 0 {
		t.Errorf("expected capacity 0, got %d", a.Capacity())
	}
}

type pair struct {
	A, B uint32
	N    float64
}

func TestMake(t *testing.T) {
	a, _ := New(1024)

	pairs, err := Make[pair](a, 10)
	if err != nil {
		t.Fatalf("make: %v", err)
	}
	if len(pairs) != 10 {
		t.Fatalf("expected 10 pairs, got %d", len(pairs))
	}
	pairs[9] = pair{A: 1, B: 2, N: 3}
	if a.Used() != 10*int(unsafe.Sizeof(pair{})) {
		t.Errorf("unexpected used bytes %d", a.Used())
	}

	if _, err := Make[float64](a, 1000); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	empty, err := Make[pair](a, 0)
	if err != nil || empty != nil {
		t.Errorf("expected nil slice for n=0, got %v, %v", empty, err)
	}
}

package engine

import (
	"math/bits"
	"runtime"
	"sync"
)

const maxBodyMutexes = 64

// DefaultBodyMutexes is used when Settings.NumBodyMutexes is zero.
func DefaultBodyMutexes() int {
	return min(nextPow2(2*runtime.NumCPU()), maxBodyMutexes)
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// bodyLocks stripes body access over a power-of-two number of mutexes.
type bodyLocks struct {
	mu   []sync.Mutex
	mask uint32
}

func newBodyLocks(n int) *bodyLocks {
	if n <= 0 {
		n = DefaultBodyMutexes()
	}
	n = nextPow2(n)
	return &bodyLocks{mu: make([]sync.Mutex, n), mask: uint32(n - 1)}
}

func (l *bodyLocks) len() int { return len(l.mu) }

func (l *bodyLocks) lock(id BodyID)   { l.mu[uint32(id)&l.mask].Lock() }
func (l *bodyLocks) unlock(id BodyID) { l.mu[uint32(id)&l.mask].Unlock() }

// lockAll takes every stripe in index order.
func (l *bodyLocks) lockAll() {
	for i := range l.mu {
		l.mu[i].Lock()
	}
}

func (l *bodyLocks) unlockAll() {
	for i := len(l.mu) - 1; i >= 0; i-- {
		l.mu[i].Unlock()
	}
}

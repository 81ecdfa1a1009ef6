// Package jobs is the fixed-size worker pool that runs the parallel part of
// a simulation step.
package jobs

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

const (
	MaxPhysicsJobs     = 2048
	MaxPhysicsBarriers = 8
)

var (
	ErrClosed          = errors.New("jobs: pool closed")
	ErrTooManyJobs     = errors.New("jobs: barrier job capacity exceeded")
	ErrTooManyBarriers = errors.New("jobs: barrier capacity exceeded")
	ErrInvalidCapacity = errors.New("jobs: capacity must be positive")
)

// Barrier collects jobs so a caller can wait for all of them.
type Barrier interface {
	AddJob(fn func()) error
	Wait()
}

// System is what the engine needs from a job scheduler.
type System interface {
	CreateBarrier() (Barrier, error)
	DestroyBarrier(Barrier)
	Workers() int
}

type job struct {
	fn func()
	b  *barrier
}

// Pool runs jobs on a fixed set of goroutines started at construction.
// With zero workers, jobs run inline on the goroutine that adds them.
type Pool struct {
	maxJobs  int
	workers  int
	queue    chan job
	barriers *semaphore.Weighted

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

var _ System = (*Pool)(nil)

// DefaultThreads leaves one CPU for the stepping goroutine.
func DefaultThreads() int {
	return max(runtime.NumCPU()-1, 0)
}

// New starts numThreads workers; a negative count selects DefaultThreads.
func New(maxJobs, maxBarriers, numThreads int) (*Pool, error) {
	if maxJobs <= 0 || maxBarriers <= 0 {
		return nil, fmt.Errorf("%w: jobs=%d barriers=%d", ErrInvalidCapacity, maxJobs, maxBarriers)
	}
	if numThreads < 0 {
		numThreads = DefaultThreads()
	}

	p := &Pool{
		maxJobs:  maxJobs,
		workers:  numThreads,
		queue:    make(chan job, maxJobs),
		barriers: semaphore.NewWeighted(int64(maxBarriers)),
	}

	p.wg.Add(numThreads)
	for i := 0; i < numThreads; i++ {
		go p.worker()
	}
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for j := range p.queue {
		j.run()
	}
}

func (p *Pool) Workers() int { return p.workers }
func (p *Pool) MaxJobs() int { return p.maxJobs }

func (p *Pool) CreateBarrier() (Barrier, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, ErrClosed
	}
	if !p.barriers.TryAcquire(1) {
		return nil, ErrTooManyBarriers
	}
	return &barrier{pool: p}, nil
}

// DestroyBarrier waits for outstanding jobs and returns the barrier slot.
func (p *Pool) DestroyBarrier(b Barrier) {
	bb, ok := b.(*barrier)
	if !ok || bb.pool != p {
		return
	}
	bb.Wait()
	if bb.destroyed.CompareAndSwap(false, true) {
		p.barriers.Release(1)
	}
}

// Close stops the workers after queued jobs have run.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) submit(j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if p.workers == 0 {
		j.run()
		return nil
	}
	p.queue <- j
	return nil
}

type barrier struct {
	pool      *Pool
	wg        sync.WaitGroup
	pending   atomic.Int64
	destroyed atomic.Bool
}

func (b *barrier) AddJob(fn func()) error {
	if b.destroyed.Load() {
		return ErrClosed
	}
	if b.pending.Add(1) > int64(b.pool.maxJobs) {
		b.pending.Add(-1)
		return ErrTooManyJobs
	}
	b.wg.Add(1)
	if err := b.pool.submit(job{fn: fn, b: b}); err != nil {
		b.pending.Add(-1)
		b.wg.Done()
		return err
	}
	return nil
}

func (b *barrier) Wait() {
	b.wg.Wait()
}

func (j job) run() {
	defer func() {
		j.b.pending.Add(-1)
		j.b.wg.Done()
	}()
	j.fn()
}

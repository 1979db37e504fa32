package raster

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Surface is the per-slot rendering state. A Surface is owned by exactly one
// render at a time and is reset when its slot is released.
type Surface struct {
	ID int

	fc *faceCache
	// Release hooks run once when the slot is returned, on every exit path.
	cleanup []func()
}

// fontFaces returns the slot's font face cache, creating it on first use.
// Faces are not safe for concurrent use, which is why they live per slot.
func (s *Surface) fontFaces() *faceCache {
	if s.fc == nil {
		s.fc = newFaceCache()
	}
	return s.fc
}

// OnRelease registers fn to run when the slot is released.
func (s *Surface) OnRelease(fn func()) {
	s.cleanup = append(s.cleanup, fn)
}

func (s *Surface) release() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
	s.cleanup = s.cleanup[:0]
}

// Pool bounds how many renders run at once. Each slot carries a Surface
// that is handed to one caller at a time.
type Pool struct {
	sem   *semaphore.Weighted
	size  int
	inUse atomic.Int64

	mu   sync.Mutex
	free []*Surface
	next int
}

// NewPool returns a pool with size slots. A size below one is treated as one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int { return p.size }

// InUse returns the number of slots currently held.
func (p *Pool) InUse() int { return int(p.inUse.Load()) }

// Do waits for a free slot, runs fn with its Surface and releases the slot
// when fn returns or panics.
func (p *Pool) Do(ctx context.Context, fn func(*Surface) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("raster: waiting for a render slot: %w", err)
	}
	s := p.take()
	p.inUse.Add(1)
	defer func() {
		s.release()
		p.put(s)
		p.inUse.Add(-1)
		p.sem.Release(1)
	}()
	return fn(s)
}

func (p *Pool) take() *Surface {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s
	}
	p.next++
	return &Surface{ID: p.next}
}

func (p *Pool) put(s *Surface) {
	p.mu.Lock()
	p.free = append(p.free, s)
	p.mu.Unlock()
}

// Package performance provides concurrency utilities for the fan-out
// pipeline stages.
package performance

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool manages a pool of workers for concurrent task execution. The
// detail-enrichment and series-ingestion stages use it to fan out across
// symbols; each task is independent and idempotent once cached.
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	running   atomic.Bool
	tasksDone atomic.Uint64
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers. If workers is 0, it defaults to runtime.NumCPU().
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*4),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start starts the worker pool.
func (p *WorkerPool) Start() {
	if p.running.Swap(true) {
		return // Already running
	}
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			task()
			p.tasksDone.Add(1)
		}
	}
}

// Submit submits a task, blocking while the queue is full.
// Returns false if the pool is not running.
func (p *WorkerPool) Submit(task func()) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case <-p.ctx.Done():
		return false
	case p.taskQueue <- task:
		return true
	}
}

// Stop stops the pool after draining queued tasks.
func (p *WorkerPool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	close(p.taskQueue)
	p.wg.Wait()
	p.cancel()
}

// TasksDone returns the number of completed tasks.
func (p *WorkerPool) TasksDone() uint64 {
	return p.tasksDone.Load()
}

// ForEach runs fn for every item on a bounded pool and waits for
// completion. Items are processed in no particular order; callers needing
// deterministic output must sort afterwards.
func ForEach[T any](workers int, items []T, fn func(T)) {
	pool := NewWorkerPool(workers)
	pool.Start()
	var wg sync.WaitGroup
	for _, item := range items {
		item := item
		wg.Add(1)
		pool.Submit(func() {
			defer wg.Done()
			fn(item)
		})
	}
	wg.Wait()
	pool.Stop()
}

package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Task is a unit of background work. Tasks with the same Key are coalesced while one is pending.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

type RefresherStats struct {
	Submitted uint64 `json:"submitted"`
	Succeeded uint64 `json:"succeeded"`
	Failed    uint64 `json:"failed"`
	Dropped   uint64 `json:"dropped"`
	Pending   int    `json:"pending"`
}

// Refresher runs background tasks on a fixed number of workers fed by a bounded queue.
// Submit never blocks: a full queue drops the task.
type Refresher struct {
	queue   chan Task
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	onError func(key string, err error)

	mu      sync.Mutex
	pending map[string]struct{}
	stopped bool

	submitted atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func NewRefresher(workers, queueSize int, onError func(key string, err error)) *Refresher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Refresher{
		queue:   make(chan Task, queueSize),
		ctx:     ctx,
		cancel:  cancel,
		onError: onError,
		pending: make(map[string]struct{}),
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.work()
	}
	return r
}

// Submit queues t and reports whether it was accepted.
func (r *Refresher) Submit(t Task) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		r.dropped.Add(1)
		return false
	}
	if _, ok := r.pending[t.Key]; ok {
		return false
	}

	select {
	case r.queue <- t:
		r.pending[t.Key] = struct{}{}
		r.submitted.Add(1)
		return true
	default:
		r.dropped.Add(1)
		return false
	}
}

// Stop cancels running tasks and waits for the workers to exit. Queued tasks are discarded.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) Stats() RefresherStats {
	r.mu.Lock()
	pending := len(r.pending)
	r.mu.Unlock()

	return RefresherStats{
		Submitted: r.submitted.Load(),
		Succeeded: r.succeeded.Load(),
		Failed:    r.failed.Load(),
		Dropped:   r.dropped.Load(),
		Pending:   pending,
	}
}

func (r *Refresher) work() {
	defer r.wg.Done()
	for {
		select {
		case <-r.ctx.Done():
			return
		case t := <-r.queue:
			r.run(t)
		}
	}
}

func (r *Refresher) run(t Task) {
	defer func() {
		r.mu.Lock()
		delete(r.pending, t.Key)
		r.mu.Unlock()
	}()

	err := func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("refresh panicked: %v", rec)
			}
		}()
		return t.Run(r.ctx)
	}()

	if err != nil {
		r.failed.Add(1)
		if r.onError != nil {
			r.onError(t.Key, err)
		}
		return
	}
	r.succeeded.Add(1)
}

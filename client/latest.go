package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrSuperseded is returned by a call that was replaced by a newer one before it completed.
var ErrSuperseded = errors.New("client: superseded by a newer request")

// Latest lets only the most recent of overlapping calls deliver a result.
// Starting a call cancels the context of the previous one, and a call that finishes after being
// superseded returns ErrSuperseded instead of its (older) result.
type Latest struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

func (l *Latest) begin(ctx context.Context) (context.Context, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	ctx, l.cancel = context.WithCancel(ctx)
	return ctx, l.seq
}

// end reports whether the call seq is still the latest.
func (l *Latest) end(seq uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.seq != seq {
		return false
	}
	l.cancel()
	l.cancel = nil
	return true
}

// Do runs fn unless a newer call supersedes it.
func (l *Latest) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, seq := l.begin(ctx)
	err := fn(ctx)
	if !l.end(seq) {
		return ErrSuperseded
	}
	return err
}

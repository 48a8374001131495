package store

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
)

type writeOp struct {
	key    string
	value  []byte
	remove bool
	done   chan struct{}
}

// writer mirrors state into the key-value medium on its own goroutine.
// Operations are applied in the order they were queued and each one runs to
// completion once started, independent of the caller.
type writer struct {
	kv   KeyValue
	opts *options

	mu      sync.Mutex
	queue   []writeOp
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

func newWriter(kv KeyValue, opts *options) *writer {
	w := &writer{
		kv:      kv,
		opts:    opts,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *writer) set(key string, value []byte) {
	w.push(writeOp{key: key, value: value})
}

func (w *writer) remove(key string) {
	w.push(writeOp{key: key, remove: true})
}

// flush waits until every operation queued before the call has been applied.
func (w *writer) flush(ctx context.Context) error {
	done := make(chan struct{})
	if !w.push(writeOp{done: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.stopped
		return
	}
	w.closed = true
	w.mu.Unlock()
	w.signal()
	<-w.stopped
}

// push queues op and reports whether it was queued. After close, writes are
// applied inline so they are not lost and barriers are dropped.
func (w *writer) push(op writeOp) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		if op.done == nil {
			w.apply(op)
		}
		return false
	}
	w.queue = append(w.queue, op)
	w.mu.Unlock()
	w.signal()
	return true
}

func (w *writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *writer) run() {
	defer close(w.stopped)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 {
			if w.closed {
				w.mu.Unlock()
				return
			}
			w.mu.Unlock()
			<-w.wake
			w.mu.Lock()
		}
		op := w.queue[0]
		w.queue[0] = writeOp{}
		w.queue = w.queue[1:]
		w.mu.Unlock()

		w.apply(op)
	}
}

func (w *writer) apply(op writeOp) {
	if op.done != nil {
		close(op.done)
		return
	}

	ctx := context.Background()
	name := "set"
	if op.remove {
		name = "remove"
	}
	attempt := func() error {
		var err error
		if op.remove {
			err = w.kv.Remove(ctx, op.key)
		} else {
			err = w.kv.Set(ctx, op.key, op.value)
		}
		w.opts.metrics.RecordPersist(op.key, name, err)
		return err
	}

	err := backoff.Retry(attempt, w.retryPolicy())
	if err != nil {
		w.opts.report(&PersistenceError{Op: name, Key: op.key, Err: err})
		return
	}
	w.opts.log.Debug().Str("key", op.key).Str("op", name).Msg("persisted")
}

func (w *writer) retryPolicy() backoff.BackOff {
	if w.opts.attempts <= 1 {
		return &backoff.StopBackOff{}
	}
	exp := backoff.NewExponentialBackOff()
	if w.opts.backoff > 0 {
		exp.InitialInterval = w.opts.backoff
	}
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(w.opts.attempts-1))
}

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errDiskFull = errors.New("disk full")

// memKV is an in-memory KeyValue with per-key failure injection.
type memKV struct {
	mu       sync.Mutex
	data     map[string][]byte
	failSet  map[string]bool
	failGet  bool
	flaky    int
	gate     chan struct{}
	setCalls []string
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte), failSet: make(map[string]bool)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errDiskFull
	}
	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls = append(m.setCalls, key)
	if m.failSet[key] {
		return errDiskFull
	}
	if m.flaky > 0 {
		m.flaky--
		return errDiskFull
	}
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memKV) raw(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return string(v), ok
}

func (m *memKV) put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = []byte(value)
}

// fixedClock advances by one hour on each call, starting at start.
func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now := next
		next = next.Add(time.Hour)
		return now
	}
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("act-%d", n)
	}
}

type failureRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *failureRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *failureRecorder) all() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

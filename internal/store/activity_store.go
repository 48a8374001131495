// Package store owns the persisted activity collection and settings record.
//
// Every mutation is applied to memory first and then queued for write-through
// to the key-value medium. Callers never wait for the durable write; reads
// always reflect the in-memory result. Persistence failures are reported
// through the logger, metrics and failure hook and never roll memory back.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"bucket-list/internal/model"
)

const maxIDAttempts = 8

// ActivityStore is the single source of truth for the activity collection.
type ActivityStore struct {
	kv   KeyValue
	opts options
	w    *writer
	subs broadcaster

	mu      sync.Mutex
	items   []model.Activity
	version uint64
}

// NewActivityStore returns an empty store. Call Load to read persisted state.
func NewActivityStore(kv KeyValue, opts ...Option) *ActivityStore {
	s := &ActivityStore{
		kv:    kv,
		opts:  defaultOptions(),
		items: []model.Activity{},
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.w = newWriter(kv, &s.opts)
	return s
}

// Load replaces the in-memory collection with the persisted one. A missing
// key yields an empty collection, and so does an undecodable payload, which is
// reported rather than returned. Pending writes of this store are flushed
// first, and a mutation racing the read wins over the reloaded state.
func (s *ActivityStore) Load(ctx context.Context) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	if err := s.w.flush(ctx); err != nil {
		return fmt.Errorf("load activities: %w", err)
	}

	data, ok, err := s.kv.Get(ctx, ActivitiesKey)
	if err != nil {
		perr := &PersistenceError{Op: "get", Key: ActivitiesKey, Err: err}
		s.opts.report(perr)
		return perr
	}

	items := []model.Activity{}
	if ok {
		decoded, err := s.decode(data)
		if err != nil {
			s.opts.metrics.RecordDecodeFailure(ActivitiesKey)
			s.opts.report(&DecodeError{Key: ActivitiesKey, Err: err})
		} else {
			items = decoded
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version != version || reflect.DeepEqual(s.items, items) {
		return nil
	}
	s.items = items
	s.subs.publish(s.items)
	return nil
}

// Add creates a pending activity. Blank text is rejected with ErrValidation.
func (s *ActivityStore) Add(text string, category model.Category, location *model.Location) (model.Activity, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Activity{}, fmt.Errorf("add activity: %w: text is required", ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.nextIDLocked()
	if err != nil {
		return model.Activity{}, fmt.Errorf("add activity: %w", err)
	}

	activity := model.Activity{
		ID:        id,
		Text:      text,
		Category:  model.ParseCategory(string(category)),
		CreatedAt: s.opts.clock(),
	}
	if location != nil {
		loc := *location
		activity.Location = &loc
	}

	s.items = append(s.items, activity)
	s.commitLocked()
	return activity.Clone(), nil
}

// ToggleCompletion flips the completed flag, stamping or clearing completedAt.
func (s *ActivityStore) ToggleCompletion(id model.ID) (model.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Activity{}, fmt.Errorf("toggle activity %q: %w", id, ErrNotFound)
	}

	a := &s.items[idx]
	if a.Completed {
		a.Completed = false
		a.CompletedAt = nil
	} else {
		now := s.opts.clock()
		a.Completed = true
		a.CompletedAt = &now
	}

	s.commitLocked()
	return a.Clone(), nil
}

// UpdateFields merges patch into the matching activity.
func (s *ActivityStore) UpdateFields(id model.ID, patch model.ActivityPatch) (model.Activity, error) {
	if patch.Text != nil {
		trimmed := strings.TrimSpace(*patch.Text)
		if trimmed == "" {
			return model.Activity{}, fmt.Errorf("update activity %q: %w: text is required", id, ErrValidation)
		}
		patch.Text = &trimmed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Activity{}, fmt.Errorf("update activity %q: %w", id, ErrNotFound)
	}

	s.items[idx] = patch.Apply(s.items[idx])
	s.commitLocked()
	return s.items[idx].Clone(), nil
}

// Remove deletes the matching activity.
func (s *ActivityStore) Remove(id model.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return fmt.Errorf("remove activity %q: %w", id, ErrNotFound)
	}

	s.items = append(s.items[:idx:idx], s.items[idx+1:]...)
	s.commitLocked()
	return nil
}

// ClearAll empties the collection and deletes the persisted entry, returning
// storage to its first-launch state.
func (s *ActivityStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = []model.Activity{}
	s.version++
	s.w.remove(ActivitiesKey)
	s.subs.publish(s.items)
}

// Snapshot returns a deep copy of the collection in persistence order.
func (s *ActivityStore) Snapshot() []model.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneAll(s.items)
}

// Get returns a copy of one activity.
func (s *ActivityStore) Get(id model.ID) (model.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return model.Activity{}, false
	}
	return s.items[idx].Clone(), true
}

// Subscribe delivers a snapshot after every committed change. Call the
// returned func to stop receiving and close the channel.
func (s *ActivityStore) Subscribe(buffer int) (<-chan []model.Activity, func()) {
	return s.subs.subscribe(buffer)
}

// Flush blocks until every write issued so far reached the medium.
func (s *ActivityStore) Flush(ctx context.Context) error {
	return s.w.flush(ctx)
}

// Close flushes pending writes and stops the background writer.
func (s *ActivityStore) Close() {
	s.w.close()
}

func (s *ActivityStore) commitLocked() {
	s.version++
	payload, err := json.Marshal(s.items)
	if err != nil {
		s.opts.report(&PersistenceError{Op: "encode", Key: ActivitiesKey, Err: err})
	} else {
		s.w.set(ActivitiesKey, payload)
	}
	s.subs.publish(s.items)
}

func (s *ActivityStore) indexLocked(id model.ID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *ActivityStore) nextIDLocked() (model.ID, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := model.ID(s.opts.newID())
		if id != "" && s.indexLocked(id) < 0 {
			return id, nil
		}
	}
	return "", ErrIDUnavailable
}

func (s *ActivityStore) decode(data []byte) ([]model.Activity, error) {
	var decoded []model.Activity
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, err
	}

	items := make([]model.Activity, 0, len(decoded))
	seen := make(map[model.ID]struct{}, len(decoded))
	for _, a := range decoded {
		if _, dup := seen[a.ID]; dup {
			s.opts.log.Warn().Str("id", string(a.ID)).Msg("dropping activity with duplicate id")
			continue
		}
		seen[a.ID] = struct{}{}
		if !a.Category.Valid() {
			a.Category = model.CategoryOther
		}
		if !a.Completed {
			a.CompletedAt = nil
		}
		items = append(items, a)
	}
	return items, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"bucket-list/internal/model"
)

// SettingsStore keeps the settings record under its own key with the same
// write-through policy as ActivityStore.
type SettingsStore struct {
	kv   KeyValue
	opts options
	w    *writer

	mu       sync.Mutex
	settings model.Settings
	version  uint64
}

func NewSettingsStore(kv KeyValue, opts ...Option) *SettingsStore {
	s := &SettingsStore{
		kv:   kv,
		opts: defaultOptions(),
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	s.w = newWriter(kv, &s.opts)
	return s
}

// Load reads the persisted settings. Missing or undecodable payloads reset
// every flag to false.
func (s *SettingsStore) Load(ctx context.Context) error {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	if err := s.w.flush(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	data, ok, err := s.kv.Get(ctx, SettingsKey)
	if err != nil {
		perr := &PersistenceError{Op: "get", Key: SettingsKey, Err: err}
		s.opts.report(perr)
		return perr
	}

	var settings model.Settings
	if ok {
		if err := json.Unmarshal(data, &settings); err != nil {
			settings = model.Settings{}
			s.opts.metrics.RecordDecodeFailure(SettingsKey)
			s.opts.report(&DecodeError{Key: SettingsKey, Err: err})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.version == version {
		s.settings = settings
	}
	return nil
}

func (s *SettingsStore) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// Update merges patch into the record and persists it.
func (s *SettingsStore) Update(patch model.SettingsPatch) model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = patch.Apply(s.settings)
	s.version++

	payload, err := json.Marshal(s.settings)
	if err != nil {
		s.opts.report(&PersistenceError{Op: "encode", Key: SettingsKey, Err: err})
		return s.settings
	}
	s.w.set(SettingsKey, payload)
	return s.settings
}

// Clear resets every flag and deletes the persisted entry.
func (s *SettingsStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings = model.Settings{}
	s.version++
	s.w.remove(SettingsKey)
}

func (s *SettingsStore) Flush(ctx context.Context) error {
	return s.w.flush(ctx)
}

func (s *SettingsStore) Close() {
	s.w.close()
}

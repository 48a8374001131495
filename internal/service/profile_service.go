package service

import (
	"encoding/json"
	"fmt"
	"io"

	"bucket-list/internal/store"
)

// ProfileService covers whole-profile operations spanning both stores.
type ProfileService struct {
	activities *store.ActivityStore
	settings   *store.SettingsStore
}

func NewProfileService(activities *store.ActivityStore, settings *store.SettingsStore) *ProfileService {
	return &ProfileService{activities: activities, settings: settings}
}

// ClearAllData removes every activity and resets the settings. Both keys are
// deleted from storage independently.
func (s *ProfileService) ClearAllData() {
	s.activities.ClearAll()
	s.settings.Clear()
}

// Export writes the activity collection as indented JSON.
func (s *ProfileService) Export(w io.Writer) error {
	data, err := json.MarshalIndent(s.activities.Snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

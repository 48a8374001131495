package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownField indicates a patch payload named a field that can't be updated.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidField indicates a patch payload carried a value of the wrong shape.
	ErrInvalidField = errors.New("invalid field value")
)

// ActivityPatch is a partial update of the editable activity fields.
// Nil pointers leave the field untouched; the Clear flags reset optional fields.
type ActivityPatch struct {
	Text          *string
	Notes         *string
	Photo         *string
	ClearPhoto    bool
	Location      *Location
	ClearLocation bool
}

// Apply shallow-merges the patch into a copy of a.
func (p ActivityPatch) Apply(a Activity) Activity {
	out := a.Clone()
	if p.Text != nil {
		out.Text = *p.Text
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	switch {
	case p.ClearPhoto:
		out.Photo = nil
	case p.Photo != nil:
		photo := *p.Photo
		out.Photo = &photo
	}
	switch {
	case p.ClearLocation:
		out.Location = nil
	case p.Location != nil:
		loc := *p.Location
		out.Location = &loc
	}
	return out
}

func (p ActivityPatch) Empty() bool {
	return p.Text == nil && p.Notes == nil && p.Photo == nil && !p.ClearPhoto &&
		p.Location == nil && !p.ClearLocation
}

// ParseActivityPatch decodes a JSON object holding any of text, notes, photo
// and location. A null photo or location clears it; other keys are rejected.
func ParseActivityPatch(data []byte) (ActivityPatch, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return ActivityPatch{}, err
	}

	var patch ActivityPatch
	for _, key := range sortedKeys(fields) {
		raw := fields[key]
		switch key {
		case "text":
			var s string
			if err := decodeNonNull(raw, &s); err != nil {
				return ActivityPatch{}, fieldError(key, err)
			}
			patch.Text = &s
		case "notes":
			var s *string
			if err := json.Unmarshal(raw, &s); err != nil {
				return ActivityPatch{}, fieldError(key, err)
			}
			if s == nil {
				s = new(string)
			}
			patch.Notes = s
		case "photo":
			var s *string
			if err := json.Unmarshal(raw, &s); err != nil {
				return ActivityPatch{}, fieldError(key, err)
			}
			patch.Photo = s
			patch.ClearPhoto = s == nil
		case "location":
			var loc *Location
			if err := json.Unmarshal(raw, &loc); err != nil {
				return ActivityPatch{}, fieldError(key, err)
			}
			patch.Location = loc
			patch.ClearLocation = loc == nil
		default:
			return ActivityPatch{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
	}
	return patch, nil
}

// ParseSettingsPatch decodes a JSON object of boolean settings flags.
func ParseSettingsPatch(data []byte) (SettingsPatch, error) {
	fields, err := decodeObject(data)
	if err != nil {
		return SettingsPatch{}, err
	}

	var patch SettingsPatch
	for _, key := range sortedKeys(fields) {
		var target **bool
		switch key {
		case "notifications":
			target = &patch.Notifications
		case "dailyReminder":
			target = &patch.DailyReminder
		case "darkMode":
			target = &patch.DarkMode
		default:
			return SettingsPatch{}, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		var v bool
		if err := decodeNonNull(fields[key], &v); err != nil {
			return SettingsPatch{}, fieldError(key, err)
		}
		*target = &v
	}
	return patch, nil
}

func decodeObject(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("decode patch: %w: expected object", ErrInvalidField)
	}
	return fields, nil
}

func decodeNonNull(raw json.RawMessage, dst any) error {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return errors.New("null not allowed")
	}
	return json.Unmarshal(raw, dst)
}

func fieldError(key string, err error) error {
	return fmt.Errorf("%w: %q: %v", ErrInvalidField, key, err)
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

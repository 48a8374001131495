package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ID identifies an activity. Older payloads stored numeric ids, which decode
// into their decimal string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode activity id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Location is a latitude/longitude pair captured by the device.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Activity is a single bucket-list item.
type Activity struct {
	ID          ID         `json:"id"`
	Text        string     `json:"text"`
	Category    Category   `json:"category"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Photo       *string    `json:"photo"`
	Notes       string     `json:"notes"`
	Location    *Location  `json:"location"`
}

// Clone returns a deep copy so callers can't reach shared pointers.
func (a Activity) Clone() Activity {
	out := a
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		out.CompletedAt = &t
	}
	if a.Photo != nil {
		p := *a.Photo
		out.Photo = &p
	}
	if a.Location != nil {
		loc := *a.Location
		out.Location = &loc
	}
	return out
}

// HasPhoto reports whether a non-empty photo reference is attached.
func (a Activity) HasPhoto() bool {
	return a.Photo != nil && *a.Photo != ""
}

// CloneAll deep-copies a collection. A nil input yields an empty slice.
func CloneAll(items []Activity) []Activity {
	out := make([]Activity, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

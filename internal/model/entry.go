package model

import "time"

// Entry is one row of the durable key-value medium.
type Entry struct {
	Key       string `gorm:"primaryKey"`
	Value     string
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bucket-list/internal/model"
)

// KVRepository is the durable key-value medium backing the stores.
type KVRepository struct {
	db *gorm.DB
}

func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

// Get returns the stored value and whether the key exists.
func (r *KVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var entry model.Entry
	err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).First(&entry).Error
	switch {
	case err == nil:
		return []byte(entry.Value), true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
}

// Set stores value under key, replacing any previous value.
func (r *KVRepository) Set(ctx context.Context, key string, value []byte) error {
	entry := model.Entry{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (r *KVRepository) Remove(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where(map[string]any{"key": key}).Delete(&model.Entry{}).Error; err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Keys lists the stored keys in ascending order.
func (r *KVRepository) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	if err := r.db.WithContext(ctx).Model(&model.Entry{}).Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"bucket-list/internal/repository"
	"bucket-list/internal/store"
)

func newTestKV(t *testing.T) *repository.KVRepository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repository.NewDB(fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", name), zerolog.Nop())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return repository.NewKVRepository(db)
}

func newTestActivityStore(t *testing.T, kv store.KeyValue, now time.Time) *store.ActivityStore {
	t.Helper()
	n := 0
	s := store.NewActivityStore(kv,
		store.WithClock(func() time.Time { return now }),
		store.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)
	t.Cleanup(s.Close)
	return s
}

package store

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bucket-list/internal/model"
)

var start = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, kv KeyValue, opts ...Option) *ActivityStore {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock(start)), WithIDGenerator(sequentialIDs())}, opts...)
	s := NewActivityStore(kv, opts...)
	t.Cleanup(s.Close)
	return s
}

func TestAddCreatesPendingActivity(t *testing.T) {
	kv := newMemKV()
	s := newTestStore(t, kv)

	loc := &model.Location{Latitude: 40.7, Longitude: -74}
	a, err := s.Add("  Watch a sunrise  ", model.CategoryBeach, loc)
	require.NoError(t, err)
	require.Equal(t, model.ID("act-1"), a.ID)
	require.Equal(t, "Watch a sunrise", a.Text)
	require.Equal(t, model.CategoryBeach, a.Category)
	require.False(t, a.Completed)
	require.Nil(t, a.CompletedAt)
	require.Nil(t, a.Photo)
	require.Empty(t, a.Notes)
	require.Equal(t, start, a.CreatedAt)
	require.Equal(t, loc, a.Location)

	loc.Latitude = 0
	got, ok := s.Get(a.ID)
	require.True(t, ok)
	require.Equal(t, 40.7, got.Location.Latitude)
}

func TestAddDefaultsUnknownCategory(t *testing.T) {
	s := newTestStore(t, newMemKV())

	a, err := s.Add("Paint", model.Category("art"), nil)
	require.NoError(t, err)
	require.Equal(t, model.CategoryOther, a.Category)
}

func TestAddRejectsBlankText(t *testing.T) {
	kv := newMemKV()
	s := newTestStore(t, kv)

	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := s.Add(text, model.CategoryFun, nil)
		require.ErrorIs(t, err, ErrValidation)
	}
	require.Empty(t, s.Snapshot())

	require.NoError(t, s.Flush(context.Background()))
	_, ok := kv.raw(ActivitiesKey)
	require.False(t, ok)
}

func TestAddRetriesCollidingIDs(t *testing.T) {
	ids := []string{"same", "same", "same", "other"}
	gen := func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	s := newTestStore(t, newMemKV(), WithIDGenerator(gen))

	a, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	b, err := s.Add("two", model.CategoryFun, nil)
	require.NoError(t, err)
	require.Equal(t, model.ID("same"), a.ID)
	require.Equal(t, model.ID("other"), b.ID)
}

func TestAddFailsWhenIDsExhausted(t *testing.T) {
	s := newTestStore(t, newMemKV(), WithIDGenerator(func() string { return "dup" }))

	_, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	_, err = s.Add("two", model.CategoryFun, nil)
	require.ErrorIs(t, err, ErrIDUnavailable)
	require.Len(t, s.Snapshot(), 1)
}

func TestIDsStayUniqueAcrossMutations(t *testing.T) {
	// A coarse generator collides often, like the millisecond ids of old payloads.
	rng := rand.New(rand.NewSource(7))
	gen := func() string { return string(rune('a' + rng.Intn(40))) }
	s := newTestStore(t, newMemKV(), WithIDGenerator(gen))

	for i := 0; i < 300; i++ {
		snapshot := s.Snapshot()
		switch op := rng.Intn(3); {
		case op == 0 || len(snapshot) == 0:
			_, _ = s.Add("item", model.CategoryOther, nil)
		case op == 1:
			require.NoError(t, s.Remove(snapshot[rng.Intn(len(snapshot))].ID))
		default:
			_, err := s.ToggleCompletion(snapshot[rng.Intn(len(snapshot))].ID)
			require.NoError(t, err)
		}

		seen := make(map[model.ID]bool)
		for _, a := range s.Snapshot() {
			require.False(t, seen[a.ID], "duplicate id %q", a.ID)
			seen[a.ID] = true
		}
	}
}

func TestToggleCompletionIsAnInvolution(t *testing.T) {
	s := newTestStore(t, newMemKV())
	a, err := s.Add("Road trip", model.CategoryTravel, nil)
	require.NoError(t, err)

	done, err := s.ToggleCompletion(a.ID)
	require.NoError(t, err)
	require.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, start.Add(time.Hour), *done.CompletedAt)

	undone, err := s.ToggleCompletion(a.ID)
	require.NoError(t, err)
	require.Equal(t, a, undone)
}

func TestToggleCompletionUnknownID(t *testing.T) {
	s := newTestStore(t, newMemKV())
	_, err := s.ToggleCompletion("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateFieldsMergesTypedPatch(t *testing.T) {
	s := newTestStore(t, newMemKV())
	a, err := s.Add("Picnic", model.CategoryFood, &model.Location{Latitude: 1, Longitude: 2})
	require.NoError(t, err)

	photo := "file:///picnic.jpg"
	notes := "bring lemonade"
	updated, err := s.UpdateFields(a.ID, model.ActivityPatch{Photo: &photo, Notes: &notes})
	require.NoError(t, err)
	require.Equal(t, photo, *updated.Photo)
	require.Equal(t, notes, updated.Notes)
	require.Equal(t, "Picnic", updated.Text)
	require.Equal(t, a.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.Location)

	cleared, err := s.UpdateFields(a.ID, model.ActivityPatch{ClearPhoto: true, ClearLocation: true})
	require.NoError(t, err)
	require.Nil(t, cleared.Photo)
	require.Nil(t, cleared.Location)
	require.Equal(t, notes, cleared.Notes)
}

func TestUpdateFieldsValidation(t *testing.T) {
	s := newTestStore(t, newMemKV())
	a, err := s.Add("Picnic", model.CategoryFood, nil)
	require.NoError(t, err)

	blank := "  "
	_, err = s.UpdateFields(a.ID, model.ActivityPatch{Text: &blank})
	require.ErrorIs(t, err, ErrValidation)

	notes := "x"
	_, err = s.UpdateFields("missing", model.ActivityPatch{Notes: &notes})
	require.ErrorIs(t, err, ErrNotFound)

	got, _ := s.Get(a.ID)
	require.Equal(t, a, got)
}

func TestRemove(t *testing.T) {
	s := newTestStore(t, newMemKV())
	a, _ := s.Add("one", model.CategoryFun, nil)
	b, _ := s.Add("two", model.CategoryFun, nil)

	before := s.Snapshot()
	require.ErrorIs(t, s.Remove("missing"), ErrNotFound)
	require.Equal(t, before, s.Snapshot())

	require.NoError(t, s.Remove(a.ID))
	require.Equal(t, []model.Activity{b}, s.Snapshot())
	require.ErrorIs(t, s.Remove(a.ID), ErrNotFound)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestStore(t, newMemKV())
	a, _ := s.Add("one", model.CategoryFun, nil)
	_, err := s.ToggleCompletion(a.ID)
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[0].Text = "mutated"
	*snap[0].CompletedAt = time.Time{}
	snap = append(snap, model.Activity{ID: "ghost"})

	fresh := s.Snapshot()
	require.Len(t, fresh, 1)
	require.Equal(t, "one", fresh[0].Text)
	require.False(t, fresh[0].CompletedAt.IsZero())
}

func TestWriteThroughPersistsLatestState(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := newTestStore(t, kv)

	a, _ := s.Add("one", model.CategoryFun, nil)
	_, _ = s.Add("two", model.CategoryBeach, nil)
	_, _ = s.ToggleCompletion(a.ID)
	require.NoError(t, s.Flush(ctx))

	raw, ok := kv.raw(ActivitiesKey)
	require.True(t, ok)
	want, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	require.JSONEq(t, string(want), raw)
	require.Len(t, kv.setCalls, 3)
}

func TestMutationsDoNotWaitForStorage(t *testing.T) {
	kv := newMemKV()
	kv.gate = make(chan struct{})
	s := newTestStore(t, kv)

	a, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	_, err = s.ToggleCompletion(a.ID)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	require.True(t, snap[0].Completed)
	_, ok := kv.raw(ActivitiesKey)
	require.False(t, ok)

	close(kv.gate)
	require.NoError(t, s.Flush(context.Background()))
	raw, ok := kv.raw(ActivitiesKey)
	require.True(t, ok)
	require.Contains(t, raw, `"completed":true`)
}

func TestFlushHonoursContext(t *testing.T) {
	kv := newMemKV()
	kv.gate = make(chan struct{})
	s := newTestStore(t, kv)
	t.Cleanup(func() { close(kv.gate) })

	_, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	kv := newMemKV()
	kv.failSet[ActivitiesKey] = true
	rec := &failureRecorder{}
	s := newTestStore(t, kv, WithFailureHook(rec.record))

	a, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))

	require.Equal(t, []model.Activity{a}, s.Snapshot())
	errs := rec.all()
	require.Len(t, errs, 1)
	var perr *PersistenceError
	require.ErrorAs(t, errs[0], &perr)
	require.Equal(t, ActivitiesKey, perr.Key)
	require.Equal(t, "set", perr.Op)
	require.ErrorIs(t, errs[0], errDiskFull)
}

func TestRetryRecoversTransientFailure(t *testing.T) {
	kv := newMemKV()
	kv.flaky = 2
	rec := &failureRecorder{}
	s := newTestStore(t, kv, WithRetry(3, time.Millisecond), WithFailureHook(rec.record))

	_, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))

	require.Empty(t, rec.all())
	require.Len(t, kv.setCalls, 3)
	raw, ok := kv.raw(ActivitiesKey)
	require.True(t, ok)
	require.Contains(t, raw, `"text":"one"`)
}

func TestRetryGivesUpAfterAttempts(t *testing.T) {
	kv := newMemKV()
	kv.failSet[ActivitiesKey] = true
	rec := &failureRecorder{}
	s := newTestStore(t, kv, WithRetry(2, time.Millisecond), WithFailureHook(rec.record))

	_, err := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))

	require.Len(t, kv.setCalls, 2)
	require.Len(t, rec.all(), 1)
}

func TestClearAllRemovesPersistedEntry(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := newTestStore(t, kv)

	_, _ = s.Add("one", model.CategoryFun, nil)
	require.NoError(t, s.Flush(ctx))
	_, ok := kv.raw(ActivitiesKey)
	require.True(t, ok)

	s.ClearAll()
	require.Empty(t, s.Snapshot())
	require.NoError(t, s.Flush(ctx))
	_, ok = kv.raw(ActivitiesKey)
	require.False(t, ok)
}

func TestLoadMissingKeyYieldsEmptyCollection(t *testing.T) {
	s := newTestStore(t, newMemKV())
	require.NoError(t, s.Load(context.Background()))
	require.NotNil(t, s.Snapshot())
	require.Empty(t, s.Snapshot())
}

func TestLoadFallsBackOnCorruptPayload(t *testing.T) {
	kv := newMemKV()
	kv.put(ActivitiesKey, `{not json`)
	rec := &failureRecorder{}
	s := newTestStore(t, kv, WithFailureHook(rec.record))

	require.NoError(t, s.Load(context.Background()))
	require.Empty(t, s.Snapshot())

	errs := rec.all()
	require.Len(t, errs, 1)
	var derr *DecodeError
	require.ErrorAs(t, errs[0], &derr)
	require.Equal(t, ActivitiesKey, derr.Key)
}

func TestLoadReportsReadFailure(t *testing.T) {
	kv := newMemKV()
	s := newTestStore(t, kv)
	a, _ := s.Add("one", model.CategoryFun, nil)
	require.NoError(t, s.Flush(context.Background()))

	kv.failGet = true
	err := s.Load(context.Background())
	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "get", perr.Op)
	require.Equal(t, []model.Activity{a}, s.Snapshot())
}

func TestLoadNormalizesStoredRecords(t *testing.T) {
	kv := newMemKV()
	kv.put(ActivitiesKey, `[
		{"id":1,"text":"a","category":"moon","completed":false,"createdAt":"2025-06-01T00:00:00Z","completedAt":"2025-06-02T00:00:00Z"},
		{"id":1,"text":"dup","category":"fun","completed":false,"createdAt":"2025-06-01T00:00:00Z"},
		{"id":"2","text":"b","category":"food","completed":true,"createdAt":"2025-06-01T00:00:00Z","completedAt":"2025-06-03T00:00:00Z"}
	]`)
	s := newTestStore(t, kv)
	require.NoError(t, s.Load(context.Background()))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	require.Equal(t, model.ID("1"), snap[0].ID)
	require.Equal(t, model.CategoryOther, snap[0].Category)
	require.Nil(t, snap[0].CompletedAt)
	require.Equal(t, model.ID("2"), snap[1].ID)
	require.NotNil(t, snap[1].CompletedAt)
}

func TestSecondInstanceSeesChangesAfterLoad(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	writer := newTestStore(t, kv)
	reader := newTestStore(t, kv)
	require.NoError(t, reader.Load(ctx))

	a, _ := writer.Add("shared", model.CategoryAdventure, nil)
	require.Empty(t, reader.Snapshot())

	require.NoError(t, writer.Flush(ctx))
	require.NoError(t, reader.Load(ctx))
	require.Equal(t, []model.Activity{a}, reader.Snapshot())
}

func TestSubscribeReceivesCommittedSnapshots(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := newTestStore(t, kv)

	updates, cancel := s.Subscribe(4)
	a, _ := s.Add("one", model.CategoryFun, nil)
	_, _ = s.ToggleCompletion(a.ID)

	first := <-updates
	require.Len(t, first, 1)
	require.False(t, first[0].Completed)
	second := <-updates
	require.True(t, second[0].Completed)

	// Reloading identical state publishes nothing.
	require.NoError(t, s.Load(ctx))
	select {
	case snap := <-updates:
		t.Fatalf("unexpected snapshot %v", snap)
	default:
	}

	cancel()
	_, open := <-updates
	require.False(t, open)
	cancel()
}

func TestSlowSubscriberKeepsNewestSnapshot(t *testing.T) {
	s := newTestStore(t, newMemKV())
	updates, cancel := s.Subscribe(1)
	defer cancel()

	_, _ = s.Add("one", model.CategoryFun, nil)
	_, _ = s.Add("two", model.CategoryFun, nil)
	_, _ = s.Add("three", model.CategoryFun, nil)

	require.Len(t, <-updates, 3)
}

func TestWritesAfterCloseStillPersist(t *testing.T) {
	kv := newMemKV()
	s := NewActivityStore(kv, WithIDGenerator(sequentialIDs()))
	s.Close()

	_, err := s.Add("late", model.CategoryFun, nil)
	require.NoError(t, err)
	require.NoError(t, s.Flush(context.Background()))
	raw, ok := kv.raw(ActivitiesKey)
	require.True(t, ok)
	require.Contains(t, raw, "late")
	s.Close()
}

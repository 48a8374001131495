package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"bucket-list/internal/model"
	"bucket-list/internal/observability"
	"bucket-list/internal/stats"
	"bucket-list/internal/store"
)

const pollTimeout = 10 * time.Second

// WatcherService keeps a replica store fresh by re-loading it on an interval.
// Subscribers of the replica see changes made by other store instances within
// one polling interval.
type WatcherService struct {
	replica   *store.ActivityStore
	scheduler *SchedulerService
	interval  time.Duration
	log       zerolog.Logger
	entry     cron.EntryID
}

func NewWatcherService(replica *store.ActivityStore, scheduler *SchedulerService, interval time.Duration, log zerolog.Logger) *WatcherService {
	return &WatcherService{
		replica:   replica,
		scheduler: scheduler,
		interval:  interval,
		log:       log,
	}
}

// Start registers the polling job. The scheduler must be started separately.
func (w *WatcherService) Start() error {
	id, err := w.scheduler.ScheduleInterval(w.interval, w.Poll)
	if err != nil {
		return err
	}
	w.entry = id
	w.log.Info().Dur("interval", w.interval).Msg("snapshot polling started")
	return nil
}

func (w *WatcherService) Stop() {
	if w.entry != 0 {
		w.scheduler.Remove(w.entry)
		w.entry = 0
	}
}

// Poll re-loads the replica once.
func (w *WatcherService) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()
	if err := w.replica.Load(ctx); err != nil {
		w.log.Warn().Err(err).Msg("poll snapshot")
	}
}

// Snapshots subscribes to the replica.
func (w *WatcherService) Snapshots(buffer int) (<-chan []model.Activity, func()) {
	return w.replica.Subscribe(buffer)
}

// ExportProgress records progress gauges for every observed snapshot until
// ctx is done.
func (w *WatcherService) ExportProgress(ctx context.Context, metrics *observability.Metrics, loc *time.Location) {
	updates, cancel := w.Snapshots(1)
	defer cancel()

	record := func(items []model.Activity) {
		summary := stats.Summarize(items, loc)
		metrics.RecordProgress(summary.Total, summary.Completed, summary.Streak)
		w.log.Debug().
			Int("total", summary.Total).
			Int("completed", summary.Completed).
			Int("streak", summary.Streak).
			Msg("progress observed")
	}
	record(w.replica.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return
		case items, ok := <-updates:
			if !ok {
				return
			}
			record(items)
		}
	}
}

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"bucket-list/internal/observability"
)

// Keys of the durable medium. Each key is an independent unit.
const (
	ActivitiesKey = "activities"
	SettingsKey   = "settings"
)

// KeyValue is the durable storage the stores mirror their state into.
type KeyValue interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Option customizes a store.
type Option func(*options)

type options struct {
	clock     func() time.Time
	newID     func() string
	log       zerolog.Logger
	metrics   *observability.Metrics
	onFailure func(error)
	attempts  int
	backoff   time.Duration
}

func defaultOptions() options {
	return options{
		clock:    func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
		log:      zerolog.Nop(),
		attempts: 1,
	}
}

// WithClock sets the time source used for createdAt and completedAt.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator sets the activity id source.
func WithIDGenerator(gen func() string) Option {
	return func(o *options) {
		if gen != nil {
			o.newID = gen
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithFailureHook receives every PersistenceError and DecodeError the store
// recovers from.
func WithFailureHook(fn func(error)) Option {
	return func(o *options) {
		o.onFailure = fn
	}
}

// WithRetry makes the writer try each storage operation up to attempts times,
// waiting an exponentially growing interval starting at base in between.
func WithRetry(attempts int, base time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.attempts = attempts
		}
		o.backoff = base
	}
}

func (o *options) report(err error) {
	o.log.Error().Stack().Err(err).Msg("store failure")
	if o.onFailure != nil {
		o.onFailure(err)
	}
}

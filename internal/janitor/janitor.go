// Package janitor runs the scheduled retention sweep over the delivery
// ledger. Sessions are never pruned; only seen-delivery records expire.
package janitor

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/ayra/internal/metrics"
	"github.com/harun/ayra/internal/store"
)

// Options configures the retention sweep
type Options struct {
	Schedule   string // Cron expression (default: "0 4 * * *")
	MaxAgeDays int    // Delivery records older than this are removed (default: 30)
}

// Janitor prunes expired delivery records on a cron schedule
type Janitor struct {
	store    store.Store
	metrics  *metrics.Metrics
	cron     *cron.Cron
	schedule string
	maxAge   time.Duration
	logger   zerolog.Logger
}

// New creates a janitor; Start arms the schedule
func New(st store.Store, m *metrics.Metrics, opts Options, logger zerolog.Logger) *Janitor {
	schedule := opts.Schedule
	if schedule == "" {
		schedule = "0 4 * * *"
	}
	maxAgeDays := opts.MaxAgeDays
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}

	return &Janitor{
		store:    st,
		metrics:  m,
		cron:     cron.New(),
		schedule: schedule,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		logger:   logger.With().Str("component", "janitor").Logger(),
	}
}

// Start validates the schedule and begins running sweeps
func (j *Janitor) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.sweep); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", j.schedule, err)
	}

	j.cron.Start()
	j.logger.Info().
		Str("schedule", j.schedule).
		Dur("max_age", j.maxAge).
		Msg("Retention sweep scheduled")
	return nil
}

// Stop stops the schedule and waits for a running sweep to finish
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.logger.Info().Msg("Retention sweep stopped")
}

// sweep removes delivery records older than the retention window
func (j *Janitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)
	removed, err := j.store.PruneDeliveries(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Msg("Retention sweep failed")
		return
	}

	if j.metrics != nil {
		j.metrics.DeliveriesPrunedTotal.Add(float64(removed))
	}
	j.logger.Info().
		Int64("removed", removed).
		Time("cutoff", cutoff).
		Msg("Retention sweep completed")
}

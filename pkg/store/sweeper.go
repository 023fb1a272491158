package store

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/sessfile/internal/observability"
)

const (
	DefaultSweepMaxAge   = 7 * 24 * time.Hour
	DefaultSweepSchedule = "0 3 * * *" // daily at 03:00
)

// Sweeper removes session files whose modification time is older than
// a maximum age. It can run once on demand or on a cron schedule.
type Sweeper struct {
	store    *Store
	maxAge   time.Duration
	schedule cron.Schedule
	logger   zerolog.Logger
	stopCh   chan struct{}
	running  bool
}

// NewSweeper creates a sweeper for the store. A zero maxAge means
// DefaultSweepMaxAge; an empty expr means DefaultSweepSchedule. The
// expression uses the five standard cron fields.
func NewSweeper(store *Store, maxAge time.Duration, expr string, logger zerolog.Logger) (*Sweeper, error) {
	if maxAge == 0 {
		maxAge = DefaultSweepMaxAge
	}
	if expr == "" {
		expr = DefaultSweepSchedule
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}

	return &Sweeper{
		store:    store,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins the scheduled sweep loop.
func (sw *Sweeper) Start() error {
	if sw.running {
		return fmt.Errorf("sweeper is already running")
	}

	sw.running = true
	go sw.run()

	sw.logger.Info().
		Dur("max_age", sw.maxAge).
		Msg("Session sweeper started")

	return nil
}

// Stop stops the sweep loop.
func (sw *Sweeper) Stop() error {
	if !sw.running {
		return fmt.Errorf("sweeper is not running")
	}

	close(sw.stopCh)
	sw.running = false

	sw.logger.Info().Msg("Session sweeper stopped")

	return nil
}

func (sw *Sweeper) run() {
	for {
		next := sw.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			if _, err := sw.Run(); err != nil {
				sw.logger.Error().Err(err).Msg("Failed to sweep stale sessions")
			}
		case <-sw.stopCh:
			timer.Stop()
			return
		}
	}
}

// Run performs one sweep and returns how many sessions were removed.
func (sw *Sweeper) Run() (int, error) {
	ids, err := sw.store.List()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-sw.maxAge)
	removed := 0

	for _, id := range ids {
		info, err := sw.store.Info(id)
		if err != nil || info == nil {
			continue
		}
		if info.ModTime.After(cutoff) {
			continue
		}

		if err := sw.store.Destroy(id); err != nil {
			sw.logger.Error().Err(err).Str("id", id).Msg("Failed to remove stale session")
			continue
		}
		removed++
	}

	if removed > 0 {
		observability.RecordSwept(removed)
		sw.logger.Info().Int("removed", removed).Msg("Stale sessions swept")
	}

	return removed, nil
}

package state

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	. "github.com/vfbarros/zapflow/internal/logging"
)

// TimerConfig controls the periodic persistence and expiry sweep.
type TimerConfig struct {
	SaveIntervalMinutes int     // How often to snapshot to disk (default 5)
	MaxAgeHours         float64 // Flows inactive longer than this are swept (default 24)
}

// StartTimers schedules the periodic persist and the expiry sweep on a
// cron scheduler. Both only touch the same mutex-guarded map message
// dispatch uses, so they are safe to run off the dispatch goroutine.
func (s *Store) StartTimers(cfg TimerConfig) error {
	if cfg.SaveIntervalMinutes <= 0 {
		cfg.SaveIntervalMinutes = 5
	}
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = 24
	}

	s.timersMu.Lock()
	defer s.timersMu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("state timers already started")
	}

	c := cron.New()

	saveSpec := fmt.Sprintf("@every %dm", cfg.SaveIntervalMinutes)
	if _, err := c.AddFunc(saveSpec, func() {
		if err := s.Persist(); err != nil {
			// Transient write failure must not crash in-memory operation;
			// retried on the next cycle.
			L_error("state: periodic persist failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule persist: %w", err)
	}

	// Sweep at a fraction of the max age so expiry lag stays small.
	sweepEvery := time.Duration(cfg.MaxAgeHours*float64(time.Hour)) / 24
	if sweepEvery < time.Minute {
		sweepEvery = time.Minute
	}
	sweepSpec := fmt.Sprintf("@every %s", sweepEvery.Round(time.Second))
	if _, err := c.AddFunc(sweepSpec, func() {
		s.SweepExpired(cfg.MaxAgeHours)
	}); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	c.Start()
	s.cron = c
	L_info("state: timers started", "saveEvery", saveSpec, "sweepEvery", sweepSpec, "maxAgeHours", cfg.MaxAgeHours)
	return nil
}

// Shutdown stops the timers and performs one final persist.
func (s *Store) Shutdown() {
	s.timersMu.Lock()
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.cron = nil
	}
	s.timersMu.Unlock()

	if err := s.Persist(); err != nil {
		L_error("state: final persist failed", "error", err)
	}
}

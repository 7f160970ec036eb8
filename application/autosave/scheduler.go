package autosave

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Trigger names what asked for a save
type Trigger string

const (
	TriggerInterval         Trigger = "interval"
	TriggerVisibilityHidden Trigger = "visibility-hidden"
	TriggerPageHide         Trigger = "page-hide"
	TriggerUnload           Trigger = "unload"
)

// Outcome is the result of one save attempt
type Outcome string

const (
	OutcomeSaved      Outcome = "saved"
	OutcomeFailed     Outcome = "failed"
	OutcomeRebuilding Outcome = "skipped-rebuilding"
	OutcomeLimited    Outcome = "skipped-limited"
	OutcomeStopped    Outcome = "skipped-stopped"
)

// Saver is the tree as seen by the scheduler
type Saver interface {
	Save(ctx context.Context) bool
	IsRebuilding() bool
}

// Config controls the periodic ticker and burst coalescing
type Config struct {
	Interval time.Duration
	MinGap   time.Duration
}

// DefaultConfig saves every 30 seconds and at most once per 2 seconds otherwise
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, MinGap: 2 * time.Second}
}

// Stats counts outcomes since the scheduler was created
type Stats struct {
	Saved      int64
	Failed     int64
	Rebuilding int64
	Limited    int64
}

// Scheduler saves the tree periodically and on lifecycle triggers. Saves never
// overlap; a save requested while the tree is rebuilding is skipped.
type Scheduler struct {
	saver   Saver
	logger  *zap.Logger
	config  Config
	limiter *rate.Limiter

	saveMu   sync.Mutex
	requests chan Trigger

	// Control channels
	stopChan    chan struct{}
	stoppedChan chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	stopped     atomic.Bool

	saved      atomic.Int64
	failed     atomic.Int64
	rebuilding atomic.Int64
	limited    atomic.Int64
}

// NewScheduler creates a scheduler for saver
func NewScheduler(saver Saver, cfg Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	limit := rate.Inf
	if cfg.MinGap > 0 {
		limit = rate.Every(cfg.MinGap)
	}
	return &Scheduler{
		saver:       saver,
		logger:      logger.Named("autosave"),
		config:      cfg,
		limiter:     rate.NewLimiter(limit, 1),
		requests:    make(chan Trigger, 4),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start begins the background loop
func (s *Scheduler) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.logger.Info("Starting autosave",
			zap.Duration("interval", s.config.Interval),
			zap.Duration("min_gap", s.config.MinGap),
		)
		go s.loop(ctx)
	})
}

// Stop ends the background loop and waits for it. A running save finishes first.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		close(s.stopChan)
		started := true
		s.startOnce.Do(func() { started = false })
		if started {
			<-s.stoppedChan
		}
		s.logger.Info("Autosave stopped")
	})
}

// Notify requests a save without waiting for it. Requests that arrive while
// the queue is full are dropped; the queued one covers them.
func (s *Scheduler) Notify(trigger Trigger) {
	if s.stopped.Load() {
		return
	}
	select {
	case s.requests <- trigger:
	default:
		s.logger.Debug("autosave request coalesced", zap.String("trigger", string(trigger)))
	}
}

// Trigger saves now and reports what happened. Unload bypasses the rate
// limit so the last change is never lost on exit.
func (s *Scheduler) Trigger(ctx context.Context, trigger Trigger) Outcome {
	if trigger != TriggerUnload && s.stopped.Load() {
		return OutcomeStopped
	}
	if s.saver.IsRebuilding() {
		s.rebuilding.Add(1)
		s.logger.Debug("autosave skipped while rebuilding", zap.String("trigger", string(trigger)))
		return OutcomeRebuilding
	}
	if trigger != TriggerUnload && !s.limiter.Allow() {
		s.limited.Add(1)
		return OutcomeLimited
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	// a load may have started while this save waited for the previous one
	if s.saver.IsRebuilding() {
		s.rebuilding.Add(1)
		s.logger.Debug("autosave skipped while rebuilding", zap.String("trigger", string(trigger)))
		return OutcomeRebuilding
	}

	start := time.Now()
	if !s.saver.Save(ctx) {
		s.failed.Add(1)
		s.logger.Warn("autosave failed", zap.String("trigger", string(trigger)))
		return OutcomeFailed
	}
	s.saved.Add(1)
	s.logger.Debug("autosaved",
		zap.String("trigger", string(trigger)),
		zap.Duration("took", time.Since(start)))
	return OutcomeSaved
}

// Stats returns the outcome counters
func (s *Scheduler) Stats() Stats {
	return Stats{
		Saved:      s.saved.Load(),
		Failed:     s.failed.Load(),
		Rebuilding: s.rebuilding.Load(),
		Limited:    s.limited.Load(),
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.stoppedChan)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping autosave")
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Trigger(ctx, TriggerInterval)
		case trigger := <-s.requests:
			s.Trigger(ctx, trigger)
		}
	}
}

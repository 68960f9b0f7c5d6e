package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredNotificationDeleter removes notifications past their expiry
type ExpiredNotificationDeleter interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// SweepRecorder observes how many notifications each sweep removed
type SweepRecorder interface {
	NotificationsSwept(count int)
}

// ExpirySweeperConfig holds configuration for the expiry sweeper
type ExpirySweeperConfig struct {
	Interval     time.Duration
	SweepTimeout time.Duration
}

// DefaultExpirySweeperConfig returns default configuration
func DefaultExpirySweeperConfig() ExpirySweeperConfig {
	return ExpirySweeperConfig{
		Interval:     time.Hour,
		SweepTimeout: 30 * time.Second,
	}
}

// ExpirySweeper periodically deletes expired notifications
type ExpirySweeper struct {
	config   ExpirySweeperConfig
	deleter  ExpiredNotificationDeleter
	recorder SweepRecorder
	logger   *zap.Logger

	mu         sync.Mutex
	cancel     context.CancelFunc
	done       chan struct{}
	isRunning  bool
	sweeps     int
	totalSwept int
	lastError  error
}

// NewExpirySweeper creates a sweeper. recorder may be nil.
func NewExpirySweeper(config ExpirySweeperConfig, deleter ExpiredNotificationDeleter, recorder SweepRecorder, logger *zap.Logger) *ExpirySweeper {
	def := DefaultExpirySweeperConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = def.SweepTimeout
	}
	return &ExpirySweeper{
		config:   config,
		deleter:  deleter,
		recorder: recorder,
		logger:   logger,
	}
}

// Name returns the worker name for identification
func (s *ExpirySweeper) Name() string {
	return "notification-expiry"
}

// Start runs one sweep immediately and then one per interval
func (s *ExpirySweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("expiry sweeper already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.isRunning = true

	s.logger.Info("Expiry sweeper started", zap.Duration("interval", s.config.Interval))

	go s.loop(runCtx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *ExpirySweeper) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	s.logger.Info("Expiry sweeper stopped",
		zap.Int("sweeps", s.sweeps),
		zap.Int("total_swept", s.totalSwept))
	s.mu.Unlock()
	return nil
}

func (s *ExpirySweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.SweepOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce deletes expired notifications and returns how many went
func (s *ExpirySweeper) SweepOnce(ctx context.Context) int {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	n, err := s.deleter.DeleteExpired(sweepCtx)

	s.mu.Lock()
	s.sweeps++
	s.lastError = err
	if err == nil {
		s.totalSwept += n
	}
	s.mu.Unlock()

	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Failed to sweep expired notifications", zap.Error(err))
		}
		return 0
	}

	if s.recorder != nil {
		s.recorder.NotificationsSwept(n)
	}
	if n > 0 {
		s.logger.Info("Expired notifications swept", zap.Int("count", n))
	}
	return n
}

// Stats returns the number of sweeps run and notifications removed
func (s *ExpirySweeper) Stats() (sweeps, swept int, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps, s.totalSwept, s.lastError
}

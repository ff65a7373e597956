package allowance

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Scheduler periodically pays due allowances.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	logger   *slog.Logger
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewScheduler(svc *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		service:  svc,
		logger:   logger.With("component", "allowance_scheduler"),
		interval: interval,
	}
}

// Start runs one payout pass immediately and then one per interval until
// ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.tick(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight pass to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	paid, err := s.service.PayDueAllowances(ctx, s.service.now())
	if err != nil {
		s.logger.Error("payout pass", "error", err)
		return
	}
	if paid > 0 {
		s.logger.Info("payout pass", "paid", paid)
	}
}

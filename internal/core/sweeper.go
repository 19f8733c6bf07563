package core

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// ensureSweeperLocked starts the periodic sweep when the collection holds
// tasks and stops it when the collection is empty. Caller holds mu.
func (s *taskStore) ensureSweeperLocked() {
	if s.closed || s.sweepInterval < 0 || s.userID == "" || len(s.tasks) == 0 {
		s.stopSweeperLocked()
		return
	}
	if s.sweepCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.sweepCancel = cancel
	s.sweepers.Add(1)
	go s.runSweeper(ctx, s.sweepInterval)
	s.log.WithField("interval", s.sweepInterval.String()).Debug("sweeper started")
}

// stopSweeperLocked cancels the running sweeper without waiting for it, so
// it is safe to call while holding mu. Close does the waiting.
func (s *taskStore) stopSweeperLocked() {
	if s.sweepCancel == nil {
		return
	}
	s.sweepCancel()
	s.sweepCancel = nil
	s.log.Debug("sweeper stopped")
}

func (s *taskStore) runSweeper(ctx context.Context, interval time.Duration) {
	defer s.sweepers.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("periodic sweep failed")
			}
		}
	}
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

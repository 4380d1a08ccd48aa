// Package jobs runs the portal's scheduled housekeeping.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dreamers/incubation-portal/internal/metrics"
)

// TokenStore is the approval-token housekeeping the sweeper needs.
// *repository.ApprovalTokenRepo satisfies it.
type TokenStore interface {
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountActive(ctx context.Context, now time.Time) (int, error)
}

// RefreshStore purges expired admin sessions.  *repository.RefreshTokenRepo
// satisfies it.
type RefreshStore interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// TokenSweeper removes approval tokens that were used and issued more than
// retention ago, along with expired admin refresh tokens.
type TokenSweeper struct {
	tokens    TokenStore
	refresh   RefreshStore
	retention time.Duration
	log       logrus.FieldLogger
	now       func() time.Time
}

// NewTokenSweeper returns a sweeper keeping retention worth of history.
func NewTokenSweeper(tokens TokenStore, refresh RefreshStore, retention time.Duration, log logrus.FieldLogger) *TokenSweeper {
	return &TokenSweeper{tokens: tokens, refresh: refresh, retention: retention, log: log, now: time.Now}
}

// Sweep runs one pass.
func (s *TokenSweeper) Sweep(ctx context.Context) error {
	now := s.now().UTC()
	cutoff := now.Add(-s.retention)

	removed, err := s.tokens.DeleteStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale approval tokens: %w", err)
	}
	active, err := s.tokens.CountActive(ctx, now)
	if err != nil {
		return fmt.Errorf("count active approval tokens: %w", err)
	}
	metrics.RecordSweep(removed, active)

	var sessions int64
	if s.refresh != nil {
		if sessions, err = s.refresh.DeleteExpired(ctx, cutoff); err != nil {
			return fmt.Errorf("delete expired refresh tokens: %w", err)
		}
	}
	s.log.WithFields(logrus.Fields{
		"approval_tokens_removed": removed,
		"approval_tokens_active":  active,
		"refresh_tokens_removed":  sessions,
	}).Info("token sweep finished")
	return nil
}

// Schedule registers the sweeper on a new cron scheduler and returns it
// unstarted.  Overlapping runs are skipped.
func (s *TokenSweeper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("token sweep failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.WithFields(kvFields(kv)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.WithError(err).WithFields(kvFields(kv)).Error("cron: " + msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		f[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return f
}

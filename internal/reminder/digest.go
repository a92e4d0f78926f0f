package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
	"github.com/phrazzld/tasktracker-api/internal/domain"
	"github.com/phrazzld/tasktracker-api/internal/notification"
	"github.com/phrazzld/tasktracker-api/internal/platform/clock"
	"github.com/phrazzld/tasktracker-api/internal/store"
)

// Digest names and default schedules.
const (
	DigestMorning = "morning"
	DigestEvening = "evening"

	DefaultMorningDigestCron = "0 9 * * *"
	DefaultEveningDigestCron = "0 18 * * *"
)

// ValidateCron reports whether expr is a five-field cron expression.
func ValidateCron(expr string) error {
	if !gronx.IsValid(expr) {
		return fmt.Errorf("invalid cron expression %q", expr)
	}
	return nil
}

func (s *Scheduler) digestExprs() map[string]string {
	exprs := make(map[string]string, 2)
	if s.cfg.MorningDigestCron != "" {
		exprs[DigestMorning] = s.cfg.MorningDigestCron
	}
	if s.cfg.EveningDigestCron != "" {
		exprs[DigestEvening] = s.cfg.EveningDigestCron
	}
	return exprs
}

// StartDigests arms the next tick of each configured digest.
func (s *Scheduler) StartDigests() error {
	exprs := s.digestExprs()
	for _, expr := range exprs {
		if err := ValidateCron(expr); err != nil {
			return err
		}
	}
	for name, expr := range exprs {
		if err := s.armDigest(name, expr); err != nil {
			return err
		}
	}
	return nil
}

// rearmDigests re-arms digests that are not currently armed.
func (s *Scheduler) rearmDigests() {
	for name, expr := range s.digestExprs() {
		s.mu.Lock()
		_, armed := s.digests[name]
		s.mu.Unlock()
		if armed {
			continue
		}
		if err := s.armDigest(name, expr); err != nil {
			s.logger.Error("failed to arm digest",
				slog.String("digest", name),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Scheduler) armDigest(name, expr string) error {
	now := s.clock.Now().In(s.cfg.Location)
	next, err := gronx.NextTickAfter(expr, now, false)
	if err != nil {
		return fmt.Errorf("failed to compute next %s digest: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.digests[name]; ok {
		old.Stop()
	}
	var t clock.Timer
	t = s.clock.AfterFunc(next.Sub(now), func() {
		s.mu.Lock()
		current, ok := s.digests[name]
		if !ok || current != t {
			s.mu.Unlock()
			return
		}
		delete(s.digests, name)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FireTimeout)
		defer cancel()
		if err := s.SendDigest(ctx, name); err != nil {
			s.logger.Error("digest failed",
				slog.String("digest", name),
				slog.String("error", err.Error()))
		}
		if err := s.armDigest(name, expr); err != nil {
			s.logger.Error("failed to arm digest",
				slog.String("digest", name),
				slog.String("error", err.Error()))
		}
	})
	s.digests[name] = t
	s.logger.Debug("digest armed", slog.String("digest", name), slog.Time("at", next))
	return nil
}

// SendDigest builds and delivers the named digest for today. The morning
// digest is skipped when nothing is pending; the evening one when there are
// no tasks today at all.
func (s *Scheduler) SendDigest(ctx context.Context, name string) error {
	if !s.settings.Current().DigestsEnabled() {
		return nil
	}

	today := s.clock.Now().In(s.cfg.Location).Format(domain.DateLayout)
	tasks, err := s.tasks.List(ctx, store.TaskFilter{TenantID: s.cfg.TenantID, Date: today})
	if err != nil {
		return err
	}
	pending := 0
	for _, task := range tasks {
		if !task.Completed {
			pending++
		}
	}

	var p notification.Payload
	switch name {
	case DigestMorning:
		if pending == 0 {
			return nil
		}
		p = notification.MorningDigest(pending)
	case DigestEvening:
		if len(tasks) == 0 {
			return nil
		}
		p = notification.EveningDigest(pending)
	default:
		return fmt.Errorf("unknown digest %q", name)
	}

	s.deliver(ctx, s.logger.With(slog.String("digest", name)), p)
	return nil
}

// NextDigest returns when the named digest fires next after the current time.
func (s *Scheduler) NextDigest(name string) (time.Time, error) {
	expr, ok := s.digestExprs()[name]
	if !ok {
		return time.Time{}, fmt.Errorf("digest %q is not configured", name)
	}
	return gronx.NextTickAfter(expr, s.clock.Now().In(s.cfg.Location), false)
}

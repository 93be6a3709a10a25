package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/m3rciful/dispatchbot/core/logger"
)

// SweepJobName names the periodic session sweep.
const SweepJobName = "session.sweep"

// ScheduleSweep registers a periodic Sweep on sched. onSwept, when set,
// receives every batch of dropped sessions.
func (s *Store) ScheduleSweep(sched gocron.Scheduler, every time.Duration, onSwept func([]Session)) (gocron.Job, error) {
	return sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			removed := s.Sweep()
			if len(removed) == 0 {
				return
			}
			logger.Info(context.Background(), logger.ComponentSession, SweepJobName,
				slog.Int("count", len(removed)),
				slog.Int("pending_count", s.Len()),
			)
			if onSwept != nil {
				onSwept(removed)
			}
		}),
		gocron.WithName(SweepJobName),
	)
}

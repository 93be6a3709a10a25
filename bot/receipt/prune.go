package receipt

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/m3rciful/dispatchbot/core/logger"
)

// PruneJobName names the periodic ledger cleanup.
const PruneJobName = "receipt.prune"

// SchedulePrune registers a periodic Prune of m on sched.
func (m *Memory) SchedulePrune(sched gocron.Scheduler, every, maxAge time.Duration) (gocron.Job, error) {
	return sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if n := m.Prune(maxAge); n > 0 {
				logger.Debug(context.Background(), logger.ComponentReceipt, PruneJobName,
					slog.Int("count", n),
				)
			}
		}),
		gocron.WithName(PruneJobName),
	)
}

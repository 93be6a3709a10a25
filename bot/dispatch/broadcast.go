// Package dispatch holds the driver roster and fans delivery jobs out to it.
package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/dispatchbot/bot/intake"
	"github.com/m3rciful/dispatchbot/bot/notify"
	"github.com/m3rciful/dispatchbot/bot/texts"
	"github.com/m3rciful/dispatchbot/core/logger"
)

// DefaultConcurrency bounds parallel sends per broadcast.
const DefaultConcurrency = 8

// Job is what drivers are offered.
type Job struct {
	Ref    string
	Fields intake.Fields
}

// Failure records a driver that could not be messaged.
type Failure struct {
	Driver Driver
	Err    error
}

// Report summarizes one broadcast. Send failures never fail the broadcast.
type Report struct {
	Sent    []int64
	Failed  []Failure
	Skipped int
}

// Attempted returns how many drivers a send was tried for.
func (r Report) Attempted() int { return len(r.Sent) + len(r.Failed) }

// Details renders one line per failed driver.
func (r Report) Details() string {
	if len(r.Failed) == 0 {
		return ""
	}
	lines := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		lines = append(lines, fmt.Sprintf("• %s (%d): %s", f.Driver.Name, f.Driver.ID, logger.SanitizeLimit(f.Err.Error(), 120)))
	}
	return strings.Join(lines, "\n")
}

// Broadcaster offers jobs to every driver on the roster.
type Broadcaster struct {
	roster   Roster
	notifier notify.Notifier
	texts    texts.Translator
	limit    int
}

// NewBroadcaster creates a broadcaster sending at most limit messages at once.
func NewBroadcaster(roster Roster, notifier notify.Notifier, tr texts.Translator, limit int) *Broadcaster {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Broadcaster{roster: roster, notifier: notifier, texts: tr, limit: limit}
}

// Broadcast sends the job card to all drivers not in exclude. Only a roster
// failure is returned as an error.
func (b *Broadcaster) Broadcast(ctx context.Context, job Job, exclude []int64) (Report, error) {
	drivers, err := b.roster.List(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		mu     sync.Mutex
		report Report
	)
	msg := JobCard(b.texts, job)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.limit)
	for _, d := range drivers {
		if slices.Contains(exclude, d.ID) {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			_, sendErr := b.notifier.Send(gctx, d.ID, msg)
			mu.Lock()
			defer mu.Unlock()
			if sendErr != nil {
				report.Failed = append(report.Failed, Failure{Driver: d, Err: sendErr})
				return nil
			}
			report.Sent = append(report.Sent, d.ID)
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Sent)
	slices.SortFunc(report.Failed, func(a, b Failure) int { return cmp.Compare(a.Driver.ID, b.Driver.ID) })

	logger.Info(ctx, logger.ComponentDispatch, "dispatch.broadcast",
		slog.String("ref", job.Ref),
		slog.Int("sent", len(report.Sent)),
		slog.Int("failed", len(report.Failed)),
		slog.Int("count", report.Skipped),
	)
	return report, nil
}

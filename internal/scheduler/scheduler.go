// Package scheduler decides when the daily scan runs: once per calendar
// day, no earlier than a fixed lead before the first game of the slate.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/flooorgang/floorline/internal/logger"
)

// DefaultLead is how long before the first game the scan runs.
const DefaultLead = 3 * time.Hour

// Decision is the outcome of a schedule check
type Decision struct {
	Run    bool
	Reason string
	RunAt  time.Time // earliest eligible time; zero when no game is known
}

// ShouldRun applies the schedule rules. Calendar days are taken in now's
// location.
func ShouldRun(now, firstGame, lastRun time.Time, lead time.Duration) Decision {
	if !lastRun.IsZero() && sameDay(lastRun.In(now.Location()), now) {
		return Decision{Reason: "already ran today"}
	}
	if firstGame.IsZero() {
		return Decision{Reason: "no games scheduled today"}
	}

	runAt := firstGame.Add(-lead)
	if now.Before(runAt) {
		until := runAt.Sub(now).Round(time.Minute)
		return Decision{Reason: fmt.Sprintf("%v until run time", until), RunAt: runAt}
	}
	return Decision{Run: true, Reason: "past scheduled time", RunAt: runAt}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// State persists the once-per-day lock and the cached first game.
type State interface {
	LastRun(ctx context.Context, sport string) (time.Time, error)
	MarkRun(ctx context.Context, sport string, t time.Time) error
	FirstGame(ctx context.Context, sport string) (time.Time, error)
	SetFirstGame(ctx context.Context, sport string, t time.Time) error
}

// Slate reports the earliest commence time of today's games.
type Slate interface {
	FirstGame(ctx context.Context) (time.Time, error)
}

// Job is the scan to run when the schedule allows.
type Job func(ctx context.Context) error

// Scheduler checks the schedule on an interval and runs the job once a day
type Scheduler struct {
	state    State
	slate    Slate
	job      Job
	sport    string
	lead     time.Duration
	interval time.Duration
	location *time.Location
	now      func() time.Time
}

// New creates a Scheduler
func New(state State, slate Slate, job Job, sport string, lead, interval time.Duration, location *time.Location) *Scheduler {
	if location == nil {
		location = time.Local
	}
	return &Scheduler{
		state:    state,
		slate:    slate,
		job:      job,
		sport:    sport,
		lead:     lead,
		interval: interval,
		location: location,
		now:      time.Now,
	}
}

// Tick performs one schedule check and runs the job if due. The day is
// only marked as run when the job succeeds, so a failed scan is retried on
// the next tick.
func (s *Scheduler) Tick(ctx context.Context) (Decision, error) {
	now := s.now().In(s.location)

	lastRun, err := s.state.LastRun(ctx, s.sport)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to read last run: %w", err)
	}
	if !lastRun.IsZero() && sameDay(lastRun.In(s.location), now) {
		return ShouldRun(now, time.Time{}, lastRun, s.lead), nil
	}

	firstGame, err := s.firstGame(ctx, now)
	if err != nil {
		return Decision{}, err
	}

	d := ShouldRun(now, firstGame, lastRun, s.lead)
	if !d.Run {
		logger.Debug("Not running %s scan: %s", s.sport, d.Reason)
		return d, nil
	}

	logger.Info("Running %s scan (first game %s)", s.sport, firstGame.In(s.location).Format("3:04 PM MST"))
	if err := s.job(ctx); err != nil {
		return d, fmt.Errorf("scheduled scan failed: %w", err)
	}
	if err := s.state.MarkRun(ctx, s.sport, now); err != nil {
		return d, fmt.Errorf("failed to mark run: %w", err)
	}
	return d, nil
}

// firstGame returns today's cached first game, refreshing it from the slate
// when the cached value is from another day.
func (s *Scheduler) firstGame(ctx context.Context, now time.Time) (time.Time, error) {
	cached, err := s.state.FirstGame(ctx, s.sport)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read first game: %w", err)
	}
	if !cached.IsZero() && sameDay(cached.In(s.location), now) {
		return cached, nil
	}

	first, err := s.slate.FirstGame(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch schedule: %w", err)
	}
	if first.IsZero() {
		return first, nil
	}
	if err := s.state.SetFirstGame(ctx, s.sport, first); err != nil {
		logger.Warn("Failed to cache first game: %v", err)
	}
	logger.Info("First %s game today: %s, scan at %s", s.sport,
		first.In(s.location).Format("3:04 PM MST"), first.Add(-s.lead).In(s.location).Format("3:04 PM MST"))
	return first, nil
}

// Run ticks immediately and then every interval until ctx is cancelled.
// Tick errors are reported through onError and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, onError func(error)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("Schedule check failed: %v", err)
			if onError != nil {
				onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

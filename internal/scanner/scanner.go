// Package scanner runs a scan: it pulls today's lines from the odds
// provider, fetches each entity's history from the stats provider, applies
// the floor/ceiling engine and collects opportunities plus skip tallies.
//
// A failure for one entity never aborts the scan; it is classified into a
// SkipReason and counted. Only a failure to fetch the lines themselves, or
// context cancellation, ends a scan early.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flooorgang/floorline/internal/engine"
	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/models"
	"github.com/flooorgang/floorline/internal/oddsapi"
)

// StatsProvider supplies an entity's history for one statistic.
type StatsProvider interface {
	GetSeries(ctx context.Context, kind models.EntityKind, entity, statistic string, season int) (models.Series, error)
}

// OddsProvider supplies today's posted lines. Any of them may be empty.
type OddsProvider interface {
	PlayerProps(ctx context.Context) ([]models.Line, error)
	TeamTotals(ctx context.Context) ([]models.Line, error)
	AlternateLines(ctx context.Context) ([]models.AltMarket, error)
}

// UsageReporter is implemented by odds providers that track quota.
type UsageReporter interface {
	Usage() oddsapi.Usage
}

// ResultSink persists a finished run. Saving is best effort.
type ResultSink interface {
	SaveRun(ctx context.Context, run *models.ScanRun, opps []models.Opportunity) error
}

// Options configures a Scanner
type Options struct {
	Sport            string
	Season           int
	WindowSize       int
	MinSamplesPlayer int
	MinSamplesTeam   int
	MinSamplesAlt    int
	Tolerance        float64
	OddsCutoff       int
	PlayerProps      bool
	TeamTotals       bool
	AlternateLines   bool
	Location         *time.Location // decides the scan's calendar day
}

// Report is the outcome of one scan. Analyzed and skipped tallies count
// each entity once across all passes: an entity analyzed in any pass is
// analyzed, otherwise it is skipped under the first reason seen.
type Report struct {
	Run           models.ScanRun
	Opportunities []models.Opportunity
	Errors        []EntityError
	Duration      time.Duration
	Saved         bool

	outcomes map[string]SkipReason // entity -> "" when analyzed
	order    []string
}

// Scanner wires providers to the engine
type Scanner struct {
	stats StatsProvider
	odds  OddsProvider
	sink  ResultSink
	opts  Options
	now   func() time.Time
	newID func() string
}

// New creates a Scanner. sink may be nil.
func New(statsProvider StatsProvider, odds OddsProvider, sink ResultSink, opts Options) *Scanner {
	return &Scanner{
		stats: statsProvider,
		odds:  odds,
		sink:  sink,
		opts:  opts,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Run performs every enabled scan, merges the results and hands them to
// the sink. A sink failure is logged and never discards the report.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	started := s.now()
	report := s.newReport(started)

	type pass struct {
		name    string
		enabled bool
		scan    func(context.Context) (*Report, error)
	}
	passes := []pass{
		{"player props", s.opts.PlayerProps, s.ScanPlayers},
		{"team totals", s.opts.TeamTotals, s.ScanTeams},
		{"alternate lines", s.opts.AlternateLines, s.ScanAlternates},
	}

	var errs []error
	ran := 0
	for _, p := range passes {
		if !p.enabled {
			continue
		}
		part, err := p.scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Error("Scan of %s failed: %v", p.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
			continue
		}
		ran++
		report.merge(part)
	}
	if ran == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if u, ok := s.odds.(UsageReporter); ok {
		usage := u.Usage()
		report.Run.RequestsRemaining = usage.RequestsRemaining
		report.Run.GamesScheduled = usage.GamesScheduled
		report.Run.GamesWithProps = usage.GamesWithProps
	}

	report.Run.FinishedAt = s.now()
	report.Duration = report.Run.FinishedAt.Sub(started)
	report.Run.Opportunities = len(report.Opportunities)

	logger.Info("Scan complete: %d analyzed, %d skipped, %d opportunities in %v",
		report.Run.Analyzed, report.Run.Skipped, report.Run.Opportunities, report.Duration.Round(time.Millisecond))
	for reason, n := range report.Run.SkipReasons {
		logger.Info("  skipped (%s): %d", reason, n)
	}

	if s.sink != nil {
		if err := s.sink.SaveRun(ctx, &report.Run, report.Opportunities); err != nil {
			logger.Error("Failed to save scan results: %v", err)
		} else {
			report.Saved = true
		}
	}

	return report, nil
}

// ScanPlayers evaluates every player prop against the player's floor.
func (s *Scanner) ScanPlayers(ctx context.Context) (*Report, error) {
	lines, err := s.odds.PlayerProps(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player props: %w", err)
	}
	logger.Info("Analyzing %d player lines", len(lines))
	return s.scanLines(ctx, lines, s.opts.MinSamplesPlayer)
}

// ScanTeams evaluates team totals on both sides.
func (s *Scanner) ScanTeams(ctx context.Context) (*Report, error) {
	lines, err := s.odds.TeamTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch team totals: %w", err)
	}
	logger.Info("Analyzing %d team totals", len(lines))
	return s.scanLines(ctx, lines, s.opts.MinSamplesTeam)
}

// ScanAlternates picks the best alternate line per entity, statistic and side.
func (s *Scanner) ScanAlternates(ctx context.Context) (*Report, error) {
	markets, err := s.odds.AlternateLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch alternate lines: %w", err)
	}
	logger.Info("Analyzing %d alternate markets", len(markets))

	report := s.newReport(s.now())
	order, byEntity := groupMarkets(markets)
	for _, entity := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var firstErr *EntityError
		analyzed := false
		for _, m := range byEntity[entity] {
			result, err := s.compute(ctx, m.Kind, m.Entity, m.Statistic, s.opts.MinSamplesAlt)
			if err == nil {
				analyzed = true
				var opp models.Opportunity
				opp, err = engine.MatchAlternate(result, m, s.opts.OddsCutoff)
				if err == nil {
					report.add(s.stamp(opp))
					continue
				}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			reason := Classify(err)
			if reason == ReasonNoValue {
				continue
			}
			ee := EntityError{Entity: m.Entity, Statistic: m.Statistic, Reason: reason, Err: err}
			report.Errors = append(report.Errors, ee)
			logger.Debug("%v", ee)
			if firstErr == nil {
				firstErr = &ee
			}
			if reason.entityLevel() {
				break
			}
		}
		report.finishEntity(entity, analyzed, firstErr)
	}
	return report, nil
}

// scanLines runs Compute and Match for each line, grouped by entity.
func (s *Scanner) scanLines(ctx context.Context, lines []models.Line, minSamples int) (*Report, error) {
	report := s.newReport(s.now())
	order, byEntity := groupLines(lines)

	for i, entity := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("[%d/%d] %s", i+1, len(order), entity)

		var firstErr *EntityError
		analyzed := false
		for _, line := range byEntity[entity] {
			result, err := s.compute(ctx, line.Kind, line.Entity, line.Statistic, minSamples)
			if err == nil {
				analyzed = true
				var opps []models.Opportunity
				opps, err = engine.Match(result, line, s.opts.Tolerance)
				if err == nil {
					for _, o := range opps {
						report.add(s.stamp(o))
					}
					continue
				}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			reason := Classify(err)
			if reason == ReasonNoValue {
				continue
			}
			ee := EntityError{Entity: line.Entity, Statistic: line.Statistic, Reason: reason, Err: err}
			report.Errors = append(report.Errors, ee)
			logger.Debug("%v", ee)
			if firstErr == nil {
				firstErr = &ee
			}
			if reason.entityLevel() {
				break
			}
		}
		report.finishEntity(entity, analyzed, firstErr)
	}
	return report, nil
}

// compute fetches and windows one entity/statistic series.
func (s *Scanner) compute(ctx context.Context, kind models.EntityKind, entity, statistic string, minSamples int) (engine.Result, error) {
	series, err := s.stats.GetSeries(ctx, kind, entity, statistic, s.opts.Season)
	if err != nil {
		return engine.Result{}, err
	}
	series = engine.FilterCompleted(series, models.CalendarDay(s.now(), s.opts.Location))
	return engine.Compute(series, s.opts.WindowSize, minSamples)
}

func (s *Scanner) stamp(o models.Opportunity) models.Opportunity {
	o.ID = s.newID()
	o.DetectedAt = s.now()
	return o
}

func (s *Scanner) newReport(started time.Time) *Report {
	return &Report{
		Run: models.ScanRun{
			Sport:       s.opts.Sport,
			ScanDate:    models.CalendarDay(started, s.opts.Location),
			SkipReasons: make(map[string]int),
			StartedAt:   started,
			FinishedAt:  started,
		},
	}
}

func (r *Report) add(o models.Opportunity) {
	r.Opportunities = append(r.Opportunities, o)
	r.Run.Opportunities = len(r.Opportunities)
	logger.Info("  %s %s %s %.1f (floor %.0f, ceiling %.0f, avg %.1f)",
		o.Entity, o.Statistic, o.Side, o.LineValue, o.Floor, o.Ceiling, o.Average)
}

// finishEntity counts an entity as analyzed if any statistic was computed,
// otherwise as skipped under its first failure reason.
func (r *Report) finishEntity(entity string, analyzed bool, firstErr *EntityError) {
	var reason SkipReason
	if !analyzed && firstErr != nil {
		reason = firstErr.Reason
		logger.Warn("Skipped %s: %s", entity, reason)
	}
	r.record(entity, reason)
	r.tally()
}

func (r *Report) record(entity string, reason SkipReason) {
	if r.outcomes == nil {
		r.outcomes = make(map[string]SkipReason)
	}
	prev, seen := r.outcomes[entity]
	switch {
	case !seen:
		r.order = append(r.order, entity)
		r.outcomes[entity] = reason
	case prev != "" && reason == "":
		r.outcomes[entity] = ""
	}
}

func (r *Report) tally() {
	r.Run.Analyzed, r.Run.Skipped = 0, 0
	r.Run.SkipReasons = make(map[string]int)
	for _, entity := range r.order {
		reason := r.outcomes[entity]
		if reason == "" {
			r.Run.Analyzed++
			continue
		}
		r.Run.Skipped++
		r.Run.SkipReasons[string(reason)]++
	}
}

func (r *Report) merge(other *Report) {
	r.Opportunities = append(r.Opportunities, other.Opportunities...)
	r.Errors = append(r.Errors, other.Errors...)
	for _, entity := range other.order {
		r.record(entity, other.outcomes[entity])
	}
	r.tally()
	r.Run.Opportunities = len(r.Opportunities)
}

func groupLines(lines []models.Line) ([]string, map[string][]models.Line) {
	var order []string
	byEntity := make(map[string][]models.Line)
	for _, l := range lines {
		if _, seen := byEntity[l.Entity]; !seen {
			order = append(order, l.Entity)
		}
		byEntity[l.Entity] = append(byEntity[l.Entity], l)
	}
	return order, byEntity
}

func groupMarkets(markets []models.AltMarket) ([]string, map[string][]models.AltMarket) {
	var order []string
	byEntity := make(map[string][]models.AltMarket)
	for _, m := range markets {
		if _, seen := byEntity[m.Entity]; !seen {
			order = append(order, m.Entity)
		}
		byEntity[m.Entity] = append(byEntity[m.Entity], m)
	}
	return order, byEntity
}

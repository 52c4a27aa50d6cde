// Package oddsapi reads today's player props, team totals and alternate
// lines from The Odds API (v4) and converts them into engine lines.
package oddsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flooorgang/floorline/internal/cache"
	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/models"
)

const isoLayout = "2006-01-02T15:04:05Z"

// Config holds client construction parameters.
type Config struct {
	BaseURL        string
	APIKey         string
	Sport          string // e.g. basketball_nba, americanfootball_nfl
	Regions        string
	Bookmaker      string // optional; first listed bookmaker is used when empty
	PlayerMarkets  []string
	AltMarkets     []string
	Timeout        time.Duration
	RequestDelay   time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	Location       *time.Location

	// Cache, when set, holds each day's slate so repeat scans skip the
	// per-game odds calls. Fresh ignores cached slates but still writes them.
	Cache cache.Cache
	Fresh bool
}

// Usage reports quota and slate coverage for the most recent fetch.
type Usage struct {
	RequestsRemaining *int
	GamesScheduled    int
	GamesWithProps    int
}

// Event is one scheduled game.
type Event struct {
	ID           string    `json:"id"`
	SportKey     string    `json:"sport_key"`
	CommenceTime time.Time `json:"commence_time"`
	HomeTeam     string    `json:"home_team"`
	AwayTeam     string    `json:"away_team"`
}

type apiOutcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Point       *float64 `json:"point"`
}

type apiMarket struct {
	Key      string       `json:"key"`
	Outcomes []apiOutcome `json:"outcomes"`
}

type apiBookmaker struct {
	Key     string      `json:"key"`
	Title   string      `json:"title"`
	Markets []apiMarket `json:"markets"`
}

type apiEventOdds struct {
	Event
	Bookmakers []apiBookmaker `json:"bookmakers"`
}

// cachedSlate is the cache record for one day's markets.
type cachedSlate struct {
	GamesScheduled int            `json:"games_scheduled"`
	Books          []apiBookmaker `json:"books"`
}

// Client provides access to The Odds API
type Client struct {
	http *resty.Client
	cfg  Config
	now  func() time.Time

	mu    sync.Mutex
	usage Usage
}

// NewClient creates a new Odds API client
func NewClient(cfg Config) *Client {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Regions == "" {
		cfg.Regions = "us"
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = 500 * time.Millisecond
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetQueryParam("apiKey", cfg.APIKey).
		SetRetryCount(cfg.MaxRetries - 1).
		SetRetryWaitTime(cfg.RetryDelayBase).
		SetRetryMaxWaitTime(time.Duration(cfg.MaxRetries) * cfg.RetryDelayBase).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			// linear backoff: base, 2*base, ...
			return time.Duration(r.Request.Attempt) * cfg.RetryDelayBase, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			return r.StatusCode() >= 500 || r.StatusCode() == 429
		})

	return &Client{http: client, cfg: cfg, now: time.Now}
}

// Usage returns quota and coverage from the last slate fetch.
func (c *Client) Usage() Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage
}

// TodaysEvents lists games commencing on the current calendar day.
func (c *Client) TodaysEvents(ctx context.Context) ([]Event, error) {
	now := c.now().In(c.cfg.Location)
	y, m, d := now.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, c.cfg.Location)
	end := start.AddDate(0, 0, 1)

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"commenceTimeFrom": start.UTC().Format(isoLayout),
			"commenceTimeTo":   end.UTC().Format(isoLayout),
		}).
		Get("/sports/" + c.cfg.Sport + "/events")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	c.trackQuota(resp)
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch events: status %d: %s", resp.StatusCode(), resp.String())
	}

	var events []Event
	if err := json.Unmarshal(resp.Body(), &events); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}

	today := events[:0]
	for _, e := range events {
		if !e.CommenceTime.Before(start) && e.CommenceTime.Before(end) {
			today = append(today, e)
		}
	}
	return today, nil
}

// FirstGame returns the earliest commence time on today's slate, or the
// zero time when no games are scheduled.
func (c *Client) FirstGame(ctx context.Context) (time.Time, error) {
	events, err := c.TodaysEvents(ctx)
	if err != nil {
		return time.Time{}, err
	}
	var first time.Time
	for _, e := range events {
		if first.IsZero() || e.CommenceTime.Before(first) {
			first = e.CommenceTime
		}
	}
	return first, nil
}

// PlayerProps returns one OVER line per player and statistic.
func (c *Client) PlayerProps(ctx context.Context) ([]models.Line, error) {
	books, err := c.slate(ctx, c.cfg.PlayerMarkets)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var lines []models.Line
	for _, book := range books {
		for _, market := range book.Markets {
			stat, ok := playerMarketStat(market.Key)
			if !ok {
				continue
			}
			for _, o := range market.Outcomes {
				if o.Name != "Over" || o.Point == nil {
					continue
				}
				entity := strings.TrimSpace(o.Description)
				if entity == "" {
					continue
				}
				odds := americanOdds(o.Price)
				line := models.Line{
					Entity:    entity,
					Kind:      models.KindPlayer,
					Statistic: stat,
					Value:     *o.Point,
					Odds:      &odds,
					Side:      models.SideOver,
				}
				key := entity + "|" + stat
				if i, seen := index[key]; seen {
					lines[i] = line
					continue
				}
				index[key] = len(lines)
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// TeamTotals returns one two-sided points line per team.
func (c *Client) TeamTotals(ctx context.Context) ([]models.Line, error) {
	books, err := c.slate(ctx, []string{"team_totals"})
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var lines []models.Line
	for _, book := range books {
		for _, market := range book.Markets {
			if market.Key != "team_totals" {
				continue
			}
			for _, o := range market.Outcomes {
				if o.Name != "Over" || o.Point == nil {
					continue
				}
				team := strings.TrimSpace(o.Description)
				if team == "" {
					continue
				}
				odds := americanOdds(o.Price)
				line := models.Line{
					Entity:    team,
					Kind:      models.KindTeam,
					Statistic: "PTS",
					Value:     *o.Point,
					Odds:      &odds,
					Side:      models.SideBoth,
				}
				if i, seen := index[team]; seen {
					lines[i] = line
					continue
				}
				index[team] = len(lines)
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// AlternateLines groups every alternate threshold by entity, statistic and side.
func (c *Client) AlternateLines(ctx context.Context) ([]models.AltMarket, error) {
	if len(c.cfg.AltMarkets) == 0 {
		return nil, nil
	}
	books, err := c.slate(ctx, c.cfg.AltMarkets)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var markets []models.AltMarket
	for _, book := range books {
		for _, market := range book.Markets {
			kind, stat, ok := altMarketStat(market.Key)
			if !ok {
				continue
			}
			for _, o := range market.Outcomes {
				side, err := models.ParseSide(o.Name)
				if err != nil || side == models.SideBoth || o.Point == nil {
					continue
				}
				entity := strings.TrimSpace(o.Description)
				if entity == "" {
					continue
				}
				key := entity + "|" + stat + "|" + string(side)
				i, seen := index[key]
				if !seen {
					i = len(markets)
					index[key] = i
					markets = append(markets, models.AltMarket{
						Entity:    entity,
						Kind:      kind,
						Statistic: stat,
						Side:      side,
					})
				}
				markets[i].Lines = append(markets[i].Lines, models.AltLine{
					Value: *o.Point,
					Odds:  americanOdds(o.Price),
				})
			}
		}
	}
	return markets, nil
}

// slate fetches the given markets for every game today and returns the
// chosen bookmaker per game. Per-game failures are logged and skipped.
func (c *Client) slate(ctx context.Context, markets []string) ([]apiBookmaker, error) {
	if len(markets) == 0 {
		return nil, fmt.Errorf("no markets configured")
	}

	now := c.now().In(c.cfg.Location)
	key := c.slateKey(markets, now)
	if cached, ok := c.cachedSlate(ctx, key); ok {
		c.mu.Lock()
		c.usage.GamesScheduled = cached.GamesScheduled
		c.usage.GamesWithProps = len(cached.Books)
		c.mu.Unlock()
		logger.Info("Using cached odds for %d games (%s)", len(cached.Books), strings.Join(markets, ","))
		return cached.Books, nil
	}

	events, err := c.TodaysEvents(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.usage.GamesScheduled = len(events)
	c.usage.GamesWithProps = 0
	c.mu.Unlock()

	var books []apiBookmaker
	for i, e := range events {
		if i > 0 {
			if err := sleep(ctx, c.cfg.RequestDelay); err != nil {
				return nil, err
			}
		}

		book, ok, err := c.eventOdds(ctx, e.ID, markets)
		if err != nil {
			logger.Warn("Could not fetch odds for %s @ %s: %v", e.AwayTeam, e.HomeTeam, err)
			continue
		}
		if !ok {
			logger.Debug("No lines posted for %s @ %s", e.AwayTeam, e.HomeTeam)
			continue
		}

		c.mu.Lock()
		c.usage.GamesWithProps++
		c.mu.Unlock()
		books = append(books, book)
	}

	u := c.Usage()
	remaining := "unknown"
	if u.RequestsRemaining != nil {
		remaining = strconv.Itoa(*u.RequestsRemaining)
	}
	logger.Info("Games scheduled: %d, with lines: %d, requests remaining: %s", u.GamesScheduled, u.GamesWithProps, remaining)

	if len(books) > 0 {
		c.storeSlate(ctx, key, cachedSlate{GamesScheduled: len(events), Books: books}, now)
	}
	return books, nil
}

// slateKey identifies one day's markets for one sport and book selection.
func (c *Client) slateKey(markets []string, day time.Time) string {
	sorted := append([]string(nil), markets...)
	sort.Strings(sorted)
	books := c.cfg.Bookmaker
	if books == "" {
		books = c.cfg.Regions
	}
	return fmt.Sprintf("odds:%s:%s:%s:%s", c.cfg.Sport, books, strings.Join(sorted, ","), day.Format("2006-01-02"))
}

func (c *Client) cachedSlate(ctx context.Context, key string) (cachedSlate, bool) {
	if c.cfg.Cache == nil || c.cfg.Fresh {
		return cachedSlate{}, false
	}
	data, ok, err := c.cfg.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn("Odds cache read failed: %v", err)
		return cachedSlate{}, false
	}
	if !ok {
		return cachedSlate{}, false
	}
	var slate cachedSlate
	if err := json.Unmarshal(data, &slate); err != nil {
		logger.Warn("Discarding corrupt odds cache entry %s", key)
		return cachedSlate{}, false
	}
	return slate, true
}

// storeSlate caches a non-empty slate until local midnight.
func (c *Client) storeSlate(ctx context.Context, key string, slate cachedSlate, now time.Time) {
	if c.cfg.Cache == nil {
		return
	}
	data, err := json.Marshal(slate)
	if err != nil {
		return
	}
	y, m, d := now.Date()
	ttl := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location()).Sub(now)
	if err := c.cfg.Cache.Set(ctx, key, data, ttl); err != nil {
		logger.Warn("Odds cache write failed: %v", err)
	}
}

func (c *Client) eventOdds(ctx context.Context, eventID string, markets []string) (apiBookmaker, bool, error) {
	params := map[string]string{
		"markets":    strings.Join(markets, ","),
		"oddsFormat": "american",
	}
	if c.cfg.Bookmaker != "" {
		params["bookmakers"] = c.cfg.Bookmaker
	} else {
		params["regions"] = c.cfg.Regions
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/sports/" + c.cfg.Sport + "/events/" + eventID + "/odds")
	if err != nil {
		return apiBookmaker{}, false, err
	}
	c.trackQuota(resp)
	if resp.IsError() {
		return apiBookmaker{}, false, fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}

	var odds apiEventOdds
	if err := json.Unmarshal(resp.Body(), &odds); err != nil {
		return apiBookmaker{}, false, fmt.Errorf("failed to decode event odds: %w", err)
	}

	for _, b := range odds.Bookmakers {
		if c.cfg.Bookmaker == "" || b.Key == c.cfg.Bookmaker {
			return b, len(b.Markets) > 0, nil
		}
	}
	return apiBookmaker{}, false, nil
}

func (c *Client) trackQuota(resp *resty.Response) {
	v := resp.Header().Get("x-requests-remaining")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return
	}
	c.mu.Lock()
	c.usage.RequestsRemaining = &n
	c.mu.Unlock()
}

func americanOdds(price float64) int {
	return int(math.Round(price))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

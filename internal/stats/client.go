package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/models"
)

// Client provides access to a balldontlie-style box-score API
type Client struct {
	http         *resty.Client
	requestDelay time.Duration

	mu       sync.Mutex
	lastCall time.Time
	teams    []apiTeam
}

type apiTeam struct {
	ID           int    `json:"id"`
	FullName     string `json:"full_name"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
}

type apiPlayer struct {
	ID        int     `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Team      apiTeam `json:"team"`
}

type apiGame struct {
	ID               int     `json:"id"`
	Date             string  `json:"date"`
	Status           string  `json:"status"`
	HomeTeamScore    int     `json:"home_team_score"`
	VisitorTeamScore int     `json:"visitor_team_score"`
	HomeTeamID       int     `json:"home_team_id"`
	VisitorTeamID    int     `json:"visitor_team_id"`
	HomeTeam         apiTeam `json:"home_team"`
	VisitorTeam      apiTeam `json:"visitor_team"`
}

type apiMeta struct {
	NextCursor *int `json:"next_cursor"`
}

// NewClient creates a new stats client
func NewClient(apiBaseURL, apiKey string, timeout time.Duration, maxRetries int, retryDelayBase, requestDelay time.Duration) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Millisecond
	}
	c := &Client{requestDelay: requestDelay}

	client := resty.New().
		SetBaseURL(strings.TrimRight(apiBaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(maxRetries - 1).
		SetRetryWaitTime(retryDelayBase).
		SetRetryMaxWaitTime(time.Duration(maxRetries) * retryDelayBase).
		SetRetryAfter(func(_ *resty.Client, r *resty.Response) (time.Duration, error) {
			return time.Duration(r.Request.Attempt) * retryDelayBase, nil
		}).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil || r == nil {
				return true
			}
			if r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests {
				logger.Debug("stats request %s failed with %d (attempt %d/%d)",
					r.Request.URL, r.StatusCode(), r.Request.Attempt, maxRetries)
				return true
			}
			return false
		}).
		OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			return c.throttle(r.Context())
		})
	if apiKey != "" {
		client.SetHeader("Authorization", apiKey)
	}

	c.http = client
	return c
}

// GetSeries returns one statistic's history for a player or team.
func (c *Client) GetSeries(ctx context.Context, kind models.EntityKind, entity, statistic string, season int) (models.Series, error) {
	log, err := c.GameLog(ctx, kind, entity, season)
	if err != nil {
		return models.Series{}, err
	}
	return log.Series(statistic)
}

// GameLog returns every completed game for a player or team in a season.
func (c *Client) GameLog(ctx context.Context, kind models.EntityKind, entity string, season int) (GameLog, error) {
	switch kind {
	case models.KindTeam:
		return c.teamLog(ctx, entity, season)
	case models.KindPlayer, "":
		return c.playerLog(ctx, entity, season)
	default:
		return GameLog{}, fmt.Errorf("unknown entity kind %q", kind)
	}
}

func (c *Client) playerLog(ctx context.Context, name string, season int) (GameLog, error) {
	player, err := c.findPlayer(ctx, name)
	if err != nil {
		return GameLog{}, err
	}

	log := GameLog{Entity: name, Kind: models.KindPlayer, Season: season}
	params := url.Values{}
	params.Set("player_ids[]", strconv.Itoa(player.ID))
	params.Set("seasons[]", strconv.Itoa(season))
	params.Set("per_page", "100")

	err = c.paginate(ctx, "/stats", params, func(raw json.RawMessage) error {
		var row struct {
			Min  *string `json:"min"`
			Game apiGame `json:"game"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			return err
		}
		if !played(row.Min) || !completed(row.Game) {
			return nil
		}
		date, err := parseGameDate(row.Game.Date)
		if err != nil {
			return err
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return err
		}
		values := make(map[string]float64, len(playerStatFields))
		for stat, field := range playerStatFields {
			v, ok := fields[field]
			if !ok {
				continue
			}
			var f *float64
			if err := json.Unmarshal(v, &f); err != nil || f == nil {
				continue
			}
			values[stat] = *f
		}
		log.Games = append(log.Games, Game{Date: date, Values: values})
		return nil
	})
	if err != nil {
		return GameLog{}, fmt.Errorf("failed to fetch stats for %s: %w", name, err)
	}

	if len(log.Games) == 0 {
		return GameLog{}, fmt.Errorf("%s: %w", name, ErrNoGamesPlayed)
	}
	return log, nil
}

func (c *Client) teamLog(ctx context.Context, name string, season int) (GameLog, error) {
	team, err := c.findTeam(ctx, name)
	if err != nil {
		return GameLog{}, err
	}

	log := GameLog{Entity: team.FullName, Kind: models.KindTeam, Season: season}
	params := url.Values{}
	params.Set("team_ids[]", strconv.Itoa(team.ID))
	params.Set("seasons[]", strconv.Itoa(season))
	params.Set("per_page", "100")

	err = c.paginate(ctx, "/games", params, func(raw json.RawMessage) error {
		var g apiGame
		if err := json.Unmarshal(raw, &g); err != nil {
			return err
		}
		if !completed(g) {
			return nil
		}
		date, err := parseGameDate(g.Date)
		if err != nil {
			return err
		}

		homeID := g.HomeTeamID
		if homeID == 0 {
			homeID = g.HomeTeam.ID
		}
		own, opp := g.VisitorTeamScore, g.HomeTeamScore
		if homeID == team.ID {
			own, opp = g.HomeTeamScore, g.VisitorTeamScore
		}
		log.Games = append(log.Games, Game{
			Date:   date,
			Values: map[string]float64{"PTS": float64(own), "OPP_PTS": float64(opp)},
		})
		return nil
	})
	if err != nil {
		return GameLog{}, fmt.Errorf("failed to fetch games for %s: %w", name, err)
	}

	if len(log.Games) == 0 {
		return GameLog{}, fmt.Errorf("%s: %w", name, ErrNoGamesPlayed)
	}
	return log, nil
}

// findPlayer searches by last name and prefers an exact full-name match.
func (c *Client) findPlayer(ctx context.Context, name string) (apiPlayer, error) {
	want := normalizeName(name)
	parts := strings.Fields(want)
	if len(parts) == 0 {
		return apiPlayer{}, fmt.Errorf("empty player name: %w", ErrEntityNotFound)
	}

	params := url.Values{}
	params.Set("search", parts[len(parts)-1])
	params.Set("per_page", "100")

	var candidates []apiPlayer
	err := c.paginate(ctx, "/players", params, func(raw json.RawMessage) error {
		var p apiPlayer
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		candidates = append(candidates, p)
		return nil
	})
	if err != nil {
		return apiPlayer{}, fmt.Errorf("failed to search player %s: %w", name, err)
	}

	for _, p := range candidates {
		if normalizeName(p.FirstName+" "+p.LastName) == want {
			return p, nil
		}
	}
	return apiPlayer{}, fmt.Errorf("player %s: %w", name, ErrEntityNotFound)
}

// findTeam matches full name or nickname exactly, then as a substring.
func (c *Client) findTeam(ctx context.Context, name string) (apiTeam, error) {
	teams, err := c.listTeams(ctx)
	if err != nil {
		return apiTeam{}, err
	}

	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return apiTeam{}, fmt.Errorf("empty team name: %w", ErrEntityNotFound)
	}
	for _, t := range teams {
		if want == strings.ToLower(t.FullName) || want == strings.ToLower(t.Name) {
			return t, nil
		}
	}
	for _, t := range teams {
		if strings.Contains(strings.ToLower(t.FullName), want) || strings.Contains(strings.ToLower(t.Name), want) {
			return t, nil
		}
	}
	return apiTeam{}, fmt.Errorf("team %s: %w", name, ErrEntityNotFound)
}

func (c *Client) listTeams(ctx context.Context) ([]apiTeam, error) {
	c.mu.Lock()
	cached := c.teams
	c.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	var teams []apiTeam
	err := c.paginate(ctx, "/teams", url.Values{}, func(raw json.RawMessage) error {
		var t apiTeam
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		teams = append(teams, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	c.mu.Lock()
	c.teams = teams
	c.mu.Unlock()
	return teams, nil
}

// paginate walks a cursor-paginated list endpoint, calling fn per item.
func (c *Client) paginate(ctx context.Context, path string, params url.Values, fn func(json.RawMessage) error) error {
	for {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(params).
			Get(path)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", path, err)
		}
		if resp.IsError() {
			return fmt.Errorf("unexpected status: %d", resp.StatusCode())
		}

		var page struct {
			Data []json.RawMessage `json:"data"`
			Meta apiMeta           `json:"meta"`
		}
		if err := json.Unmarshal(resp.Body(), &page); err != nil {
			return fmt.Errorf("failed to decode %s: %w", path, err)
		}

		for _, item := range page.Data {
			if err := fn(item); err != nil {
				return fmt.Errorf("failed to parse %s item: %w", path, err)
			}
		}

		if page.Meta.NextCursor == nil || *page.Meta.NextCursor == 0 {
			return nil
		}
		params.Set("cursor", strconv.Itoa(*page.Meta.NextCursor))
	}
}

// throttle spaces upstream calls, retries included, at least requestDelay apart.
func (c *Client) throttle(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.lastCall.Add(c.requestDelay))
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return ctx.Err()
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// played reports whether a box-score row had minutes; rows without a
// minutes field (football) count as played.
func played(minutes *string) bool {
	if minutes == nil {
		return true
	}
	switch strings.TrimSpace(*minutes) {
	case "", "0", "00", "0:00", "00:00":
		return false
	}
	return true
}

// completed keeps only final games. Scheduled games carry a start time and
// live ones a period ("3rd Qtr", "Halftime") in status.
func completed(g apiGame) bool {
	status := strings.ToLower(strings.TrimSpace(g.Status))
	if !strings.HasPrefix(status, "final") {
		return false
	}
	return g.HomeTeamScore > 0 || g.VisitorTeamScore > 0
}

func parseGameDate(s string) (time.Time, error) {
	if len(s) < 10 {
		return time.Time{}, fmt.Errorf("bad game date %q", s)
	}
	return time.Parse("2006-01-02", s[:10])
}

var nameSuffixes = map[string]bool{"jr": true, "sr": true, "ii": true, "iii": true, "iv": true}

// normalizeName lowercases, drops punctuation and generational suffixes.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.NewReplacer(".", "", "'", "", ",", "", "-", " ").Replace(name)
	parts := strings.Fields(name)
	for len(parts) > 1 && nameSuffixes[parts[len(parts)-1]] {
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

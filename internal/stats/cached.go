package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/flooorgang/floorline/internal/cache"
	"github.com/flooorgang/floorline/internal/logger"
	"github.com/flooorgang/floorline/internal/models"
)

// LogSource fetches a season game log for one entity.
type LogSource interface {
	GameLog(ctx context.Context, kind models.EntityKind, entity string, season int) (GameLog, error)
}

// CachedProvider serves game logs through a cache that is valid for the rest
// of the calendar day, so each entity is fetched upstream at most once a day.
type CachedProvider struct {
	source   LogSource
	cache    cache.Cache
	location *time.Location
	fresh    bool
	now      func() time.Time
}

// NewCachedProvider wraps source. When fresh is set, cached entries are
// ignored on read but still refreshed on write.
func NewCachedProvider(source LogSource, c cache.Cache, location *time.Location, fresh bool) *CachedProvider {
	if location == nil {
		location = time.UTC
	}
	return &CachedProvider{
		source:   source,
		cache:    c,
		location: location,
		fresh:    fresh,
		now:      time.Now,
	}
}

// GetSeries returns one statistic's history, reading through the cache.
func (p *CachedProvider) GetSeries(ctx context.Context, kind models.EntityKind, entity, statistic string, season int) (models.Series, error) {
	log, err := p.GameLog(ctx, kind, entity, season)
	if err != nil {
		return models.Series{}, err
	}
	return log.Series(statistic)
}

// GameLog returns the cached log for today, fetching it on a miss.
// Cache failures degrade to an upstream fetch.
func (p *CachedProvider) GameLog(ctx context.Context, kind models.EntityKind, entity string, season int) (GameLog, error) {
	now := p.now().In(p.location)
	key := cacheKey(kind, entity, season, now)

	if !p.fresh {
		data, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("Series cache read failed for %s: %v", entity, err)
		}
		if ok {
			var log GameLog
			if err := json.Unmarshal(data, &log); err == nil {
				logger.Debug("Using cached stats for %s", entity)
				return log, nil
			}
			logger.Warn("Discarding corrupt cache entry for %s", entity)
		}
	}

	log, err := p.source.GameLog(ctx, kind, entity, season)
	if err != nil {
		return GameLog{}, err
	}

	data, err := json.Marshal(log)
	if err != nil {
		return log, nil
	}
	if err := p.cache.Set(ctx, key, data, untilEndOfDay(now)); err != nil {
		logger.Warn("Series cache write failed for %s: %v", entity, err)
	}
	return log, nil
}

func cacheKey(kind models.EntityKind, entity string, season int, day time.Time) string {
	if kind == "" {
		kind = models.KindPlayer
	}
	return fmt.Sprintf("gamelog:%s:%s:%d:%s", kind, normalizeName(strings.TrimSpace(entity)), season, day.Format("2006-01-02"))
}

// untilEndOfDay is the time left before local midnight.
func untilEndOfDay(now time.Time) time.Duration {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	return midnight.Sub(now)
}

package main

import (
	"slices"
	"testing"
	"time"

	"github.com/flooorgang/floorline/internal/cache"
	"github.com/flooorgang/floorline/internal/config"
)

func TestOddsConfig_AltMarketsFollowOddsSport(t *testing.T) {
	tests := []struct {
		name         string
		scannerSport string
		oddsSport    string
		want         string
	}{
		{"nfl", "nfl", "americanfootball_nfl", "player_pass_yds_alternate"},
		{"nba", "nba", "basketball_nba", "player_points_alternate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Scanner.Sport = tt.scannerSport
			cfg.Odds.Sport = tt.oddsSport

			got := oddsConfig(cfg, time.UTC, nil, false)
			if !slices.Contains(got.AltMarkets, tt.want) {
				t.Errorf("AltMarkets = %v, missing %s", got.AltMarkets, tt.want)
			}
		})
	}
}

func TestOddsConfig_KeepsExplicitMarketsAndCache(t *testing.T) {
	cfg := &config.Config{}
	cfg.Odds.Sport = "basketball_nba"
	cfg.Odds.AltMarkets = []string{"player_assists_alternate"}
	mem := cache.NewMemory()

	got := oddsConfig(cfg, time.UTC, mem, true)
	if len(got.AltMarkets) != 1 || got.AltMarkets[0] != "player_assists_alternate" {
		t.Errorf("explicit alt markets replaced: %v", got.AltMarkets)
	}
	if got.Cache != mem || !got.Fresh {
		t.Errorf("cache wiring lost: cache=%v fresh=%v", got.Cache, got.Fresh)
	}
}

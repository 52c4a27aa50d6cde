package oddsapi

import (
	"strings"

	"github.com/flooorgang/floorline/internal/models"
)

// playerMarkets maps Odds API player market keys to statistic names.
var playerMarkets = map[string]string{
	"player_points":           "PTS",
	"player_rebounds":         "REB",
	"player_assists":          "AST",
	"player_threes":           "FG3M",
	"player_steals":           "STL",
	"player_blocks":           "BLK",
	"player_turnovers":        "TOV",
	"player_pass_yds":         "PASS_YDS",
	"player_pass_tds":         "PASS_TDS",
	"player_pass_completions": "PASS_COMPLETIONS",
	"player_pass_attempts":    "PASS_ATTEMPTS",
	"player_rush_yds":         "RUSH_YDS",
	"player_reception_yds":    "REC_YDS",
	"player_receptions":       "RECEPTIONS",
}

// DefaultAltMarkets returns the alternate markets scanned per sport.
func DefaultAltMarkets(sport string) []string {
	if strings.HasPrefix(sport, "americanfootball") {
		return []string{
			"player_pass_yds_alternate",
			"player_rush_yds_alternate",
			"player_reception_yds_alternate",
			"player_receptions_alternate",
			"player_pass_tds_alternate",
			"player_pass_completions_alternate",
			"player_pass_attempts_alternate",
			"alternate_team_totals",
		}
	}
	return []string{
		"player_points_alternate",
		"player_rebounds_alternate",
		"player_assists_alternate",
		"player_threes_alternate",
		"alternate_team_totals",
	}
}

func playerMarketStat(key string) (string, bool) {
	stat, ok := playerMarkets[key]
	return stat, ok
}

func altMarketStat(key string) (models.EntityKind, string, bool) {
	if key == "alternate_team_totals" {
		return models.KindTeam, "PTS", true
	}
	base, found := strings.CutSuffix(key, "_alternate")
	if !found {
		return "", "", false
	}
	stat, ok := playerMarkets[base]
	return models.KindPlayer, stat, ok
}

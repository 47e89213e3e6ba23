package stats

import (
	"sort"
	"time"

	"github.com/coursova/lichess-stats-bot/internal/domain"
)

// Pure aggregation over already-normalized games. No I/O happens here;
// ranking never triggers further upstream fetches.

// PerformanceOf tallies outcomes for games with from <= playedAt <= to.
// A zero total is a valid "no games in range" result.
func PerformanceOf(games []domain.Game, from, to time.Time) domain.PerformanceWindow {
	w := domain.PerformanceWindow{From: from, To: to}
	for _, g := range games {
		if g.PlayedAt.Before(from) || g.PlayedAt.After(to) {
			continue
		}
		switch g.Result {
		case domain.Win:
			w.Wins++
		case domain.Draw:
			w.Draws++
		case domain.Loss:
			w.Losses++
		}
		w.Total++
	}
	return w
}

// FavoriteControlOf picks the most-played category from a snapshot's
// per-variant counters. Ties resolve by the fixed priority order encoded
// in domain.Controls (bullet first). ok is false for a player with no
// rated variant at all.
func FavoriteControlOf(snap domain.PlayerSnapshot) (domain.FavoriteControl, bool) {
	var fav domain.FavoriteControl
	found := false
	for _, tc := range domain.Controls() {
		line, rated := snap.Rating(tc)
		if !rated || line.Games == 0 {
			continue
		}
		// strict > keeps the earlier (higher-priority) control on ties
		if !found || line.Games > fav.Games {
			fav = domain.FavoriteControl{Control: tc, Rating: line.Rating, Games: line.Games}
			found = true
		}
	}
	return fav, found
}

const (
	// display-count clamp for openings rankings
	minTopOpenings = 1
	maxTopOpenings = 10
)

// RankOpenings groups games by (ECO, name) from the player's perspective,
// optionally filtered to one color, and returns the top entries ordered by
// games descending, win rate descending, then ECO ascending. top is
// clamped to [1,10]. The output is independent of input game order.
func RankOpenings(games []domain.Game, color *domain.Color, top int) []domain.OpeningStat {
	if top < minTopOpenings {
		top = minTopOpenings
	}
	if top > maxTopOpenings {
		top = maxTopOpenings
	}

	type key struct{ eco, name string }
	groups := map[key]*domain.OpeningStat{}
	for _, g := range games {
		if color != nil && g.Color != *color {
			continue
		}
		if g.ECO == "" && g.Opening == "" {
			continue
		}
		k := key{eco: g.ECO, name: g.Opening}
		stat, ok := groups[k]
		if !ok {
			stat = &domain.OpeningStat{Name: g.Opening, ECO: g.ECO}
			groups[k] = stat
		}
		stat.Games++
		if g.Result == domain.Win {
			stat.Wins++
		}
	}

	ranked := make([]domain.OpeningStat, 0, len(groups))
	for _, stat := range groups {
		stat.WinRate = float64(stat.Wins) / float64(stat.Games)
		ranked = append(ranked, *stat)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Games != b.Games {
			return a.Games > b.Games
		}
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		if a.ECO != b.ECO {
			return a.ECO < b.ECO
		}
		return a.Name < b.Name
	})

	if len(ranked) > top {
		ranked = ranked[:top]
	}
	return ranked
}

// WindowPoints filters a rating series to from <= at <= to, preserving
// order and duplicates.
func WindowPoints(points []domain.RatingPoint, from, to time.Time) []domain.RatingPoint {
	var out []domain.RatingPoint
	for _, p := range points {
		if p.At.Before(from) || p.At.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

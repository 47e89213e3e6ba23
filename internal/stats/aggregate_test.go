package stats

import (
	"testing"
	"time"

	"github.com/coursova/lichess-stats-bot/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 12, 0, 0, 0, time.UTC)
}

func gameOn(d int, result domain.Result) domain.Game {
	return domain.Game{ID: "g", PlayedAt: day(d), Result: result, Control: domain.Blitz}
}

func TestPerformanceOf_TallyAndTotal(t *testing.T) {
	games := []domain.Game{
		gameOn(1, domain.Win), gameOn(2, domain.Win), gameOn(3, domain.Win),
		gameOn(4, domain.Win), gameOn(5, domain.Win), gameOn(6, domain.Win),
		gameOn(7, domain.Draw), gameOn(8, domain.Draw),
		gameOn(9, domain.Loss), gameOn(10, domain.Loss),
	}
	w := PerformanceOf(games, day(1), day(10))
	if w.Wins != 6 || w.Draws != 2 || w.Losses != 2 {
		t.Fatalf("tally = %d/%d/%d, want 6/2/2", w.Wins, w.Draws, w.Losses)
	}
	if w.Total != w.Wins+w.Draws+w.Losses {
		t.Fatalf("total %d != sum of buckets", w.Total)
	}
	rate, ok := w.WinRate()
	if !ok || rate != 0.6 {
		t.Fatalf("win rate = %v ok=%v, want 0.6 true", rate, ok)
	}
}

func TestPerformanceOf_InclusiveBounds(t *testing.T) {
	games := []domain.Game{gameOn(1, domain.Win), gameOn(5, domain.Win), gameOn(9, domain.Win)}
	w := PerformanceOf(games, day(1), day(5))
	if w.Total != 2 {
		t.Fatalf("total = %d, want 2 (both endpoints inclusive)", w.Total)
	}
}

func TestPerformanceOf_EmptyWindowIsValid(t *testing.T) {
	w := PerformanceOf(nil, day(1), day(10))
	if w.Total != 0 {
		t.Fatalf("total = %d, want 0", w.Total)
	}
	if _, ok := w.WinRate(); ok {
		t.Fatal("win rate should report no data for an empty window")
	}
}

func TestFavoriteControlOf_MostPlayedWins(t *testing.T) {
	snap := domain.PlayerSnapshot{Ratings: map[domain.TimeControl]domain.RatingLine{
		domain.Blitz:     {Rating: 1900, Games: 500},
		domain.Rapid:     {Rating: 2100, Games: 120},
		domain.Classical: {Rating: 2200, Games: 10},
	}}
	fav, ok := FavoriteControlOf(snap)
	if !ok || fav.Control != domain.Blitz || fav.Games != 500 {
		t.Fatalf("favorite = %+v ok=%v, want blitz/500", fav, ok)
	}
}

func TestFavoriteControlOf_TieBreaksTowardFasterControl(t *testing.T) {
	snap := domain.PlayerSnapshot{Ratings: map[domain.TimeControl]domain.RatingLine{
		domain.Bullet: {Rating: 1800, Games: 300},
		domain.Rapid:  {Rating: 2000, Games: 300},
	}}
	fav, ok := FavoriteControlOf(snap)
	if !ok || fav.Control != domain.Bullet {
		t.Fatalf("favorite = %+v, want bullet on a tie", fav)
	}
}

func TestFavoriteControlOf_NoRatedVariants(t *testing.T) {
	if _, ok := FavoriteControlOf(domain.PlayerSnapshot{}); ok {
		t.Fatal("expected ok=false for a player with no rated games")
	}
}

func openingGame(eco, name string, color domain.Color, result domain.Result) domain.Game {
	return domain.Game{ECO: eco, Opening: name, Color: color, Result: result, PlayedAt: day(1)}
}

func TestRankOpenings_OrderAndWinRate(t *testing.T) {
	games := []domain.Game{
		openingGame("B20", "Sicilian Defense", domain.White, domain.Win),
		openingGame("B20", "Sicilian Defense", domain.White, domain.Win),
		openingGame("B20", "Sicilian Defense", domain.White, domain.Loss),
		openingGame("C50", "Italian Game", domain.White, domain.Win),
		openingGame("C50", "Italian Game", domain.White, domain.Draw),
		openingGame("A40", "Queen's Pawn Game", domain.Black, domain.Loss),
	}
	ranked := RankOpenings(games, nil, 5)
	if len(ranked) != 3 {
		t.Fatalf("got %d openings, want 3", len(ranked))
	}
	if ranked[0].ECO != "B20" || ranked[0].Games != 3 {
		t.Fatalf("top opening = %+v, want B20 with 3 games", ranked[0])
	}
	if got := ranked[0].WinRate; got < 0.66 || got > 0.67 {
		t.Fatalf("B20 win rate = %v, want 2/3", got)
	}
	if ranked[1].ECO != "C50" || ranked[2].ECO != "A40" {
		t.Fatalf("order = %s, %s; want C50 then A40", ranked[1].ECO, ranked[2].ECO)
	}
}

func TestRankOpenings_OrderIndependentOfInput(t *testing.T) {
	games := []domain.Game{
		openingGame("B20", "Sicilian Defense", domain.White, domain.Win),
		openingGame("C50", "Italian Game", domain.White, domain.Win),
		openingGame("B20", "Sicilian Defense", domain.White, domain.Loss),
	}
	reversed := []domain.Game{games[2], games[1], games[0]}

	a := RankOpenings(games, nil, 5)
	b := RankOpenings(reversed, nil, 5)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("rank %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestRankOpenings_ColorFilter(t *testing.T) {
	games := []domain.Game{
		openingGame("B20", "Sicilian Defense", domain.White, domain.Win),
		openingGame("A40", "Queen's Pawn Game", domain.Black, domain.Win),
	}
	black := domain.Black
	ranked := RankOpenings(games, &black, 5)
	if len(ranked) != 1 || ranked[0].ECO != "A40" {
		t.Fatalf("ranked = %+v, want only A40", ranked)
	}
}

func TestRankOpenings_ClampsTop(t *testing.T) {
	var games []domain.Game
	ecos := []string{"A00", "A01", "A02", "A03", "A04", "A05", "A06", "A07", "A08", "A09", "A10", "A11"}
	for _, eco := range ecos {
		games = append(games, openingGame(eco, "Opening "+eco, domain.White, domain.Win))
	}
	if got := len(RankOpenings(games, nil, 50)); got != 10 {
		t.Fatalf("top=50 returned %d entries, want clamp to 10", got)
	}
	if got := len(RankOpenings(games, nil, 0)); got != 1 {
		t.Fatalf("top=0 returned %d entries, want clamp to 1", got)
	}
}

func TestRankOpenings_SkipsGamesWithoutOpeningData(t *testing.T) {
	games := []domain.Game{
		{Color: domain.White, Result: domain.Win, PlayedAt: day(1)},
		openingGame("B20", "Sicilian Defense", domain.White, domain.Win),
	}
	ranked := RankOpenings(games, nil, 5)
	if len(ranked) != 1 {
		t.Fatalf("got %d openings, want unnamed game skipped", len(ranked))
	}
}

func TestWindowPoints_KeepsDuplicatesAndOrder(t *testing.T) {
	points := []domain.RatingPoint{
		{At: day(1), Rating: 1500},
		{At: day(3), Rating: 1520},
		{At: day(3), Rating: 1510},
		{At: day(8), Rating: 1530},
	}
	got := WindowPoints(points, day(2), day(5))
	if len(got) != 2 || got[0].Rating != 1520 || got[1].Rating != 1510 {
		t.Fatalf("window = %+v, want both day-3 samples in order", got)
	}
}

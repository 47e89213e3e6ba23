package domain

import "time"

// TimeControl classifies game pacing. The declaration order doubles as the
// favorite-control tie-break priority: bullet beats blitz beats rapid beats
// classical when game counts are equal.
type TimeControl uint8

const (
	Bullet TimeControl = iota
	Blitz
	Rapid
	Classical
)

func (tc TimeControl) String() string {
	switch tc {
	case Bullet:
		return "bullet"
	case Blitz:
		return "blitz"
	case Rapid:
		return "rapid"
	case Classical:
		return "classical"
	}
	return "unknown"
}

// Controls returns every time-control category in tie-break priority order.
func Controls() []TimeControl {
	return []TimeControl{Bullet, Blitz, Rapid, Classical}
}

func ParseTimeControl(s string) (TimeControl, bool) {
	switch s {
	case "bullet":
		return Bullet, true
	case "blitz":
		return Blitz, true
	case "rapid":
		return Rapid, true
	case "classical":
		return Classical, true
	}
	return 0, false
}

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func ParseColor(s string) (Color, bool) {
	switch s {
	case "white":
		return White, true
	case "black":
		return Black, true
	}
	return 0, false
}

// Result is a game outcome from the perspective of the requesting player.
type Result uint8

const (
	Win Result = iota
	Draw
	Loss
)

func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Draw:
		return "draw"
	}
	return "loss"
}

// RatingLine is one variant's entry of a player profile. A variant the
// player never played has no RatingLine at all (absent map key).
type RatingLine struct {
	Rating      int
	Games       int
	Provisional bool
}

// PlayerSnapshot is a point-in-time copy of a player's upstream profile.
// It is fetched fresh per request; the directory store only keeps the
// latest known copy as a best-effort cache.
type PlayerSnapshot struct {
	ID         string // directory store key, assigned on first upsert
	Username   string // case-preserving
	Title      string // empty when untitled
	Flag       string // empty when unset
	Ratings    map[TimeControl]RatingLine
	TotalGames int
	CreatedAt  time.Time
	LastSeen   time.Time
	FetchedAt  time.Time
}

// Rating reports the rating line for a control, false when unrated.
func (s PlayerSnapshot) Rating(tc TimeControl) (RatingLine, bool) {
	line, ok := s.Ratings[tc]
	return line, ok
}

// Game is a single normalized game, immutable once built. Color and Result
// are resolved relative to the player the caller asked about.
type Game struct {
	ID        string
	White     string
	Black     string
	Color     Color
	Result    Result
	Control   TimeControl
	PlayedAt  time.Time // UTC
	ECO       string
	Opening   string
	MovesText string
	Rated     bool
}

// Opponent returns the other player's username.
func (g Game) Opponent() string {
	if g.Color == White {
		return g.Black
	}
	return g.White
}

// PerformanceWindow is a W/D/L tally over an inclusive UTC date range.
// Total == Wins + Draws + Losses always; Total == 0 means "no games in
// range" and is a valid result, not an error.
type PerformanceWindow struct {
	From   time.Time
	To     time.Time
	Wins   int
	Draws  int
	Losses int
	Total  int
}

// WinRate reports wins/total. ok is false when the window holds no games;
// callers must treat that as "no data" rather than dividing by zero.
func (w PerformanceWindow) WinRate() (float64, bool) {
	if w.Total == 0 {
		return 0, false
	}
	return float64(w.Wins) / float64(w.Total), true
}

// FavoriteControl is the category a player has played the most.
type FavoriteControl struct {
	Control TimeControl
	Rating  int
	Games   int
}

// OpeningStat is one ranked opening from the requesting player's
// perspective.
type OpeningStat struct {
	Name    string
	ECO     string
	Games   int
	Wins    int
	WinRate float64
}

type ComparisonSide struct {
	Snapshot PlayerSnapshot
	Window   PerformanceWindow
}

// ComparisonResult holds two independently computed sides over the same
// window.
type ComparisonResult struct {
	First  ComparisonSide
	Second ComparisonSide
}

// RatingPoint is one sample of a rating-history series, ordered by
// timestamp ascending. Duplicate timestamps are kept; the renderer lets
// the last value win.
type RatingPoint struct {
	At     time.Time
	Rating int
}

// GameRef points at a single upstream game without carrying its payload.
type GameRef struct {
	ID       string
	URL      string
	Username string
}

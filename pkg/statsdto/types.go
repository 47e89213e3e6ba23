package statsdto

import "time"

// Typed results of the front-end contract. The engine never formats
// user-facing text; consumers build their own presentation from these.

type RatingDTO struct {
	Rating      int  `json:"rating"`
	Games       int  `json:"games"`
	Provisional bool `json:"provisional,omitempty"`
}

type PlayerInfoDTO struct {
	Username   string               `json:"username"`
	Title      string               `json:"title,omitempty"`
	Flag       string               `json:"flag,omitempty"`
	Ratings    map[string]RatingDTO `json:"ratings"`
	TotalGames int                  `json:"totalGames"`
	CreatedAt  time.Time            `json:"createdAt"`
	LastSeen   time.Time            `json:"lastSeen"`
	FetchedAt  time.Time            `json:"fetchedAt"`
}

type PerformanceDTO struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Wins   int       `json:"wins"`
	Draws  int       `json:"draws"`
	Losses int       `json:"losses"`
	Total  int       `json:"total"`
	// nil when the window holds no games
	WinRate *float64 `json:"winRate,omitempty"`
}

type FavoriteControlDTO struct {
	Control string `json:"control"`
	Rating  int    `json:"rating"`
	Games   int    `json:"games"`
}

type OpeningDTO struct {
	Name    string  `json:"name"`
	ECO     string  `json:"eco"`
	Games   int     `json:"games"`
	WinRate float64 `json:"winRate"`
}

type ComparisonSideDTO struct {
	Player      PlayerInfoDTO  `json:"player"`
	Performance PerformanceDTO `json:"performance"`
}

type ComparisonDTO struct {
	First  ComparisonSideDTO `json:"first"`
	Second ComparisonSideDTO `json:"second"`
}

type GameRefDTO struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Username string `json:"username"`
}

type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

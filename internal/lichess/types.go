package lichess

import "time"

// Wire payloads of the Lichess REST API. Kept private to this package;
// the normalizer translates them into domain values.

type profilePayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Profile  struct {
		Flag    string `json:"flag"`
		Country string `json:"country"`
	} `json:"profile"`
	Perfs     map[string]perfPayload `json:"perfs"`
	CreatedAt int64                  `json:"createdAt"`
	SeenAt    int64                  `json:"seenAt"`
	Count     struct {
		All int `json:"all"`
	} `json:"count"`
}

type perfPayload struct {
	Games       int  `json:"games"`
	Rating      int  `json:"rating"`
	Provisional bool `json:"prov"`
}

type exportedGame struct {
	ID        string `json:"id"`
	Rated     bool   `json:"rated"`
	Variant   string `json:"variant"`
	Speed     string `json:"speed"`
	Perf      string `json:"perf"`
	CreatedAt int64  `json:"createdAt"`
	Status    string `json:"status"`
	Winner    string `json:"winner"`
	Players   struct {
		White exportedPlayer `json:"white"`
		Black exportedPlayer `json:"black"`
	} `json:"players"`
	Opening struct {
		ECO  string `json:"eco"`
		Name string `json:"name"`
		Ply  int    `json:"ply"`
	} `json:"opening"`
	Moves string `json:"moves"`
}

type exportedPlayer struct {
	User struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	} `json:"user"`
	Rating int `json:"rating"`
}

type ratingHistoryEntry struct {
	Name string   `json:"name"`
	// Each point is [year, month (0-based), day, rating].
	Points [][4]int `json:"points"`
}

// GamesQuery narrows a game-export request. Zero values mean "no filter".
type GamesQuery struct {
	Username string
	Max      int
	Control  string // bullet|blitz|rapid|classical, empty for all
	Since    time.Time
	Until    time.Time
	Color    string // white|black, empty for both
}

package lichess

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

func TestClient_ProfileSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/alice" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok123" {
			t.Errorf("authorization = %q", got)
		}
		w.Write([]byte(`{"id":"alice","username":"Alice","title":"WIM","createdAt":1580515200000,"seenAt":1767225600000,"count":{"all":4200},"profile":{"flag":"NO"},"perfs":{"blitz":{"games":4000,"rating":1903,"prov":false}}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithToken("tok123"))
	snap, err := c.Profile(context.Background(), "alice")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if snap.Username != "Alice" || snap.Title != "WIM" || snap.Flag != "NO" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if line, ok := snap.Rating(domain.Blitz); !ok || line.Rating != 1903 || line.Games != 4000 {
		t.Fatalf("blitz line = %+v ok=%v", line, ok)
	}
}

func TestClient_StatusMapping(t *testing.T) {
	cases := []struct {
		status int
		kind   statsdto.ErrorKind
	}{
		{http.StatusNotFound, statsdto.KindNotFound},
		{http.StatusTooManyRequests, statsdto.KindRateLimited},
		{http.StatusInternalServerError, statsdto.KindUpstreamUnavailable},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tc.status)
		}))
		c := NewClient(srv.URL)
		_, err := c.Profile(context.Background(), "ghost")
		if !statsdto.IsKind(err, tc.kind) {
			t.Errorf("status %d: err = %v, want kind %s", tc.status, err, tc.kind)
		}
		srv.Close()
	}
}

func TestClient_GamesStreamSkipsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != acceptNDJSON {
			t.Errorf("accept = %q", got)
		}
		q := r.URL.Query()
		if q.Get("max") != "100" || q.Get("moves") != "true" || q.Get("opening") != "true" {
			t.Errorf("query = %v", q)
		}
		w.Write([]byte(exportedWin + "\n"))
		w.Write([]byte("{not json}\n"))
		w.Write([]byte("\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	games, skipped, err := c.Games(context.Background(), GamesQuery{Username: "alice", Max: 100})
	if err != nil {
		t.Fatalf("games: %v", err)
	}
	if len(games) != 1 || skipped != 1 {
		t.Fatalf("games=%d skipped=%d, want 1/1", len(games), skipped)
	}
	if games[0].ID != "abc12345" {
		t.Fatalf("game = %+v", games[0])
	}
}

func TestClient_GamesWindowParams(t *testing.T) {
	since := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var (
		mu   sync.Mutex
		seen map[string][]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = r.URL.Query()
		mu.Unlock()
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, _, err := c.Games(context.Background(), GamesQuery{
		Username: "alice", Since: since, Until: until, Color: "black", Control: "blitz",
	}); err != nil {
		t.Fatalf("games: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	get := func(k string) string {
		if v := seen[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	if get("since") != "1769904000000" || get("until") != "1772323200000" {
		t.Fatalf("since/until = %s/%s", get("since"), get("until"))
	}
	if get("color") != "black" || get("perfType") != "blitz" {
		t.Fatalf("filters = %v", seen)
	}
}

func TestClient_RatingHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/alice/rating-history" {
			t.Errorf("path = %q", r.URL.Path)
		}
		// months are 0-based on the wire
		w.Write([]byte(`[{"name":"Bullet","points":[[2026,0,5,1710]]},{"name":"Blitz","points":[[2026,2,10,1903],[2026,0,2,1880]]}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	points, err := c.RatingHistory(context.Background(), "alice", domain.Blitz)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %+v", points)
	}
	if !points[0].At.Before(points[1].At) {
		t.Fatal("points not sorted ascending")
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !points[1].At.Equal(want) || points[1].Rating != 1903 {
		t.Fatalf("point = %+v, want %v @1903", points[1], want)
	}

	none, err := c.RatingHistory(context.Background(), "alice", domain.Classical)
	if err != nil || none != nil {
		t.Fatalf("absent control: points=%v err=%v, want nil,nil", none, err)
	}
}

func TestClient_ExportPGN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != acceptPGN {
			t.Errorf("accept = %q", got)
		}
		if got := r.URL.Query().Get("max"); got != "5" {
			t.Errorf("max = %q", got)
		}
		w.Write([]byte("[Event \"x\"]\n\n1. e4 1-0\n"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	text, err := c.ExportPGN(context.Background(), "alice", 5)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if text == "" {
		t.Fatal("expected pgn body")
	}
}

func TestClient_CancelledContextShortCircuits(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL)
	if _, err := c.Profile(ctx, "alice"); !statsdto.IsKind(err, statsdto.KindCancelled) {
		t.Fatalf("err = %v, want cancelled", err)
	}
	if _, err := c.ExportGames(ctx, GamesQuery{Username: "alice"}); !statsdto.IsKind(err, statsdto.KindCancelled) {
		t.Fatalf("stream err = %v, want cancelled", err)
	}
	if called {
		t.Fatal("upstream reached despite cancelled context")
	}
}

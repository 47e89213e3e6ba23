package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

const dateLayout = "2006-01-02"

// Queries is the slice of the stats service the HTTP layer consumes.
type Queries interface {
	PlayerInfo(ctx context.Context, username string) (domain.PlayerSnapshot, error)
	Performance(ctx context.Context, username string, from, to time.Time) (domain.PerformanceWindow, error)
	FavoriteControl(ctx context.Context, username string) (domain.FavoriteControl, error)
	Openings(ctx context.Context, username string, color *domain.Color, fetch, top int) ([]domain.OpeningStat, error)
	Compare(ctx context.Context, first, second string, from, to time.Time) (domain.ComparisonResult, error)
	RatingChart(ctx context.Context, username string, control domain.TimeControl, from, to time.Time) ([]byte, error)
	ExportPGN(ctx context.Context, username string, count int) (string, error)
	RandomTopGame(ctx context.Context) (domain.GameRef, error)
	CachedPlayer(ctx context.Context, username string) (domain.PlayerSnapshot, error)
	ForgetPlayer(ctx context.Context, username string) error
}

type Server struct {
	svc Queries
	log *zap.Logger
}

func NewServer(svc Queries, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/random-game", s.handleRandomGame)
		r.Get("/compare", s.handleCompare)
		r.Route("/players/{username}", func(r chi.Router) {
			r.Get("/", s.handlePlayerInfo)
			r.Delete("/", s.handleForgetPlayer)
			r.Get("/cached", s.handleCachedPlayer)
			r.Get("/performance", s.handlePerformance)
			r.Get("/favorite", s.handleFavorite)
			r.Get("/openings", s.handleOpenings)
			r.Get("/pgn", s.handlePGN)
			r.Get("/chart/{control}", s.handleChart)
		})
	})
	return r
}

func (s *Server) handlePlayerInfo(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.PlayerInfo(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotDTO(snap))
}

func (s *Server) handleCachedPlayer(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.CachedPlayer(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snapshotDTO(snap))
}

func (s *Server) handleForgetPlayer(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ForgetPlayer(r.Context(), chi.URLParam(r, "username")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	perf, err := s.svc.Performance(r.Context(), chi.URLParam(r, "username"), from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, performanceDTO(perf))
}

func (s *Server) handleFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := s.svc.FavoriteControl(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statsdto.FavoriteControlDTO{
		Control: fav.Control.String(),
		Rating:  fav.Rating,
		Games:   fav.Games,
	})
}

func (s *Server) handleOpenings(w http.ResponseWriter, r *http.Request) {
	var color *domain.Color
	if v := r.URL.Query().Get("color"); v != "" {
		c, ok := domain.ParseColor(v)
		if !ok {
			s.writeError(w, statsdto.InvalidRange("color must be white or black"))
			return
		}
		color = &c
	}
	fetch := intQuery(r, "fetch", 0)
	top := intQuery(r, "top", 0)

	ranked, err := s.svc.Openings(r.Context(), chi.URLParam(r, "username"), color, fetch, top)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]statsdto.OpeningDTO, 0, len(ranked))
	for _, o := range ranked {
		out = append(out, statsdto.OpeningDTO{
			Name:    o.Name,
			ECO:     o.ECO,
			Games:   o.Games,
			WinRate: o.WinRate,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	first, second := strings.TrimSpace(q.Get("first")), strings.TrimSpace(q.Get("second"))
	if first == "" || second == "" {
		s.writeError(w, statsdto.InvalidRange("first and second players are required"))
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.Compare(r.Context(), first, second, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statsdto.ComparisonDTO{
		First:  comparisonSideDTO(result.First),
		Second: comparisonSideDTO(result.Second),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	control, ok := domain.ParseTimeControl(chi.URLParam(r, "control"))
	if !ok {
		s.writeError(w, statsdto.InvalidRange("unknown time control"))
		return
	}
	from, to, err := parseWindow(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	png, err := s.svc.RatingChart(r.Context(), chi.URLParam(r, "username"), control, from, to)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		s.log.Warn("chart response write failed", zap.Error(err))
	}
}

func (s *Server) handlePGN(w http.ResponseWriter, r *http.Request) {
	count := intQuery(r, "count", 0)
	text, err := s.svc.ExportPGN(r.Context(), chi.URLParam(r, "username"), count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-chess-pgn")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(text)); err != nil {
		s.log.Warn("pgn response write failed", zap.Error(err))
	}
}

func (s *Server) handleRandomGame(w http.ResponseWriter, r *http.Request) {
	ref, err := s.svc.RandomTopGame(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statsdto.GameRefDTO{
		ID:       ref.ID,
		URL:      ref.URL,
		Username: ref.Username,
	})
}

// parseWindow reads either days=N or from/to dates (inclusive, UTC). Bad
// input surfaces as an invalid-range outcome before the service runs.
func parseWindow(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()
	var from, to time.Time

	if v := strings.TrimSpace(q.Get("days")); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days <= 0 {
			return time.Time{}, time.Time{}, statsdto.InvalidRange("days must be a positive integer")
		}
		to = time.Now().UTC()
		return to.AddDate(0, 0, -days), to, nil
	}
	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, statsdto.InvalidRange("from must be formatted YYYY-MM-DD")
		}
		from = t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, time.UTC)
		if err != nil {
			return time.Time{}, time.Time{}, statsdto.InvalidRange("to must be formatted YYYY-MM-DD")
		}
		// end of day keeps the range inclusive
		to = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	return from, to, nil
}

func intQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := statsdto.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		s.log.Error("query failed", zap.String("kind", string(kind)), zap.Error(err))
	}
	s.writeJSON(w, status, map[string]statsdto.ErrorDTO{
		"error": {Code: string(kind), Message: err.Error()},
	})
}

func statusForKind(kind statsdto.ErrorKind) int {
	switch kind {
	case statsdto.KindNotFound, statsdto.KindNoData:
		return http.StatusNotFound
	case statsdto.KindInvalidRange:
		return http.StatusBadRequest
	case statsdto.KindRateLimited:
		return http.StatusTooManyRequests
	case statsdto.KindCancelled:
		return 499 // client closed request
	default:
		return http.StatusBadGateway
	}
}

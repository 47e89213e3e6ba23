package stats

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/internal/lichess"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

// Upstream is the slice of the Lichess client the service consumes.
// Games returns normalized records plus the malformed-record skip count.
type Upstream interface {
	Profile(ctx context.Context, username string) (domain.PlayerSnapshot, error)
	Games(ctx context.Context, q lichess.GamesQuery) ([]domain.Game, int, error)
	RatingHistory(ctx context.Context, username string, control domain.TimeControl) ([]domain.RatingPoint, error)
	ExportPGN(ctx context.Context, username string, count int) (string, error)
}

// DirectoryStore is the best-effort latest-snapshot cache. Upsert must be
// atomic by username at the storage layer; the service never locks around
// it.
type DirectoryStore interface {
	Upsert(ctx context.Context, snap domain.PlayerSnapshot) error
	GetByUsername(ctx context.Context, username string) (*domain.PlayerSnapshot, error)
	Delete(ctx context.Context, id string) error
}

// ChartRenderer turns an ordered rating series into an encoded raster
// image.
type ChartRenderer interface {
	Render(points []domain.RatingPoint, from, to time.Time, label string) ([]byte, error)
}

// ChartCache is an advisory cache of rendered charts. Failures are logged
// and never fail the query.
type ChartCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, png []byte) error
}

// Options are the documented defaults of the aggregation engine. The seed
// list drives random-game selection and is injected configuration, never a
// hard-coded constant.
type Options struct {
	DefaultWindowDays  int
	MaxWindowDays      int
	OpeningsFetchLimit int
	PerfFetchLimit     int
	PGNExportLimit     int
	GameURLBase        string
	SeedPlayers        []string
}

func (o Options) withDefaults() Options {
	if o.DefaultWindowDays <= 0 {
		o.DefaultWindowDays = 30
	}
	if o.MaxWindowDays <= 0 {
		o.MaxWindowDays = 365
	}
	if o.OpeningsFetchLimit <= 0 {
		o.OpeningsFetchLimit = 100
	}
	if o.PerfFetchLimit <= 0 {
		o.PerfFetchLimit = 1000
	}
	if o.PGNExportLimit <= 0 {
		o.PGNExportLimit = 50
	}
	if o.GameURLBase == "" {
		o.GameURLBase = "https://lichess.org"
	}
	return o
}

// Deps wires the service's collaborators. Store and Cache may be nil;
// everything they back is advisory except the explicit directory queries.
type Deps struct {
	Upstream Upstream
	Store    DirectoryStore
	Renderer ChartRenderer
	Cache    ChartCache
	Log      *zap.Logger
	Pick     func(n int) int // seed index selection, injectable for tests
}

// Service is the statistics aggregation engine. Each call is an
// independent pipeline invocation with no shared mutable state.
type Service struct {
	upstream Upstream
	store    DirectoryStore
	renderer ChartRenderer
	cache    ChartCache
	opts     Options
	log      *zap.Logger
	pick     func(n int) int
}

func NewService(deps Deps, opts Options) *Service {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	pick := deps.Pick
	if pick == nil {
		pick = rand.Intn
	}
	return &Service{
		upstream: deps.Upstream,
		store:    deps.Store,
		renderer: deps.Renderer,
		cache:    deps.Cache,
		opts:     opts.withDefaults(),
		log:      log,
		pick:     pick,
	}
}

// PlayerInfo fetches a fresh snapshot and opportunistically refreshes the
// directory store. The store write is fire-and-forget: it never delays or
// fails the response.
func (s *Service) PlayerInfo(ctx context.Context, username string) (domain.PlayerSnapshot, error) {
	snap, err := s.upstream.Profile(ctx, username)
	if err != nil {
		return domain.PlayerSnapshot{}, err
	}
	if s.store != nil {
		go func(snap domain.PlayerSnapshot) {
			wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.store.Upsert(wctx, snap); err != nil {
				s.log.Error("directory upsert failed",
					zap.String("username", snap.Username), zap.Error(err))
			}
		}(snap)
	}
	return snap, nil
}

// Performance computes the W/D/L window for a player. The range is
// validated before any upstream call; a zero-total window is a valid
// result.
func (s *Service) Performance(ctx context.Context, username string, from, to time.Time) (domain.PerformanceWindow, error) {
	from, to, err := s.resolveWindow(from, to)
	if err != nil {
		return domain.PerformanceWindow{}, err
	}
	games, skipped, err := s.upstream.Games(ctx, lichess.GamesQuery{
		Username: username,
		Max:      s.opts.PerfFetchLimit,
		Since:    from,
		Until:    to,
	})
	if err != nil {
		return domain.PerformanceWindow{}, err
	}
	if skipped > 0 {
		s.log.Info("skipped malformed game records",
			zap.String("username", username), zap.Int("skipped", skipped))
	}
	return PerformanceOf(games, from, to), nil
}

// FavoriteControl reports the category the player plays the most.
func (s *Service) FavoriteControl(ctx context.Context, username string) (domain.FavoriteControl, error) {
	snap, err := s.upstream.Profile(ctx, username)
	if err != nil {
		return domain.FavoriteControl{}, err
	}
	fav, ok := FavoriteControlOf(snap)
	if !ok {
		return domain.FavoriteControl{}, statsdto.NoData("no rated games for " + snap.Username)
	}
	return fav, nil
}

// Openings ranks the player's openings over their most recent games. fetch
// bounds how many games are examined and is independent of top, the
// display count; ranking never fetches more mid-computation.
func (s *Service) Openings(ctx context.Context, username string, color *domain.Color, fetch, top int) ([]domain.OpeningStat, error) {
	if fetch <= 0 || fetch > s.opts.OpeningsFetchLimit {
		fetch = s.opts.OpeningsFetchLimit
	}
	q := lichess.GamesQuery{Username: username, Max: fetch}
	if color != nil {
		q.Color = color.String()
	}
	games, skipped, err := s.upstream.Games(ctx, q)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		s.log.Info("skipped malformed game records",
			zap.String("username", username), zap.Int("skipped", skipped))
	}
	ranked := RankOpenings(games, color, top)
	if len(ranked) == 0 {
		return nil, statsdto.NoData("no opening data for " + username)
	}
	return ranked, nil
}

// Compare computes snapshot plus performance window for two players
// independently over the same window (default: last 30 days). If either
// side is unresolvable the whole comparison fails, naming that side.
func (s *Service) Compare(ctx context.Context, first, second string, from, to time.Time) (domain.ComparisonResult, error) {
	from, to, err := s.resolveWindow(from, to)
	if err != nil {
		return domain.ComparisonResult{}, err
	}

	var (
		wg    sync.WaitGroup
		sides [2]domain.ComparisonSide
		errs  [2]error
	)
	for i, username := range []string{first, second} {
		wg.Add(1)
		go func(i int, username string) {
			defer wg.Done()
			sides[i], errs[i] = s.compareSide(ctx, username, from, to)
		}(i, username)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return domain.ComparisonResult{}, err
		}
	}
	return domain.ComparisonResult{First: sides[0], Second: sides[1]}, nil
}

// compareSide fetches one player's profile and window games concurrently;
// both are independent reads and aggregation waits for both.
func (s *Service) compareSide(ctx context.Context, username string, from, to time.Time) (domain.ComparisonSide, error) {
	var (
		wg      sync.WaitGroup
		snap    domain.PlayerSnapshot
		games   []domain.Game
		perr    error
		gerr    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap, perr = s.upstream.Profile(ctx, username)
	}()
	go func() {
		defer wg.Done()
		games, _, gerr = s.upstream.Games(ctx, lichess.GamesQuery{
			Username: username,
			Max:      s.opts.PerfFetchLimit,
			Since:    from,
			Until:    to,
		})
	}()
	wg.Wait()

	if err := firstErr(perr, gerr); err != nil {
		if statsdto.IsKind(err, statsdto.KindNotFound) {
			return domain.ComparisonSide{}, statsdto.NotFound("player not found: " + username)
		}
		return domain.ComparisonSide{}, err
	}
	return domain.ComparisonSide{
		Snapshot: snap,
		Window:   PerformanceOf(games, from, to),
	}, nil
}

// RatingChart renders the rating-vs-time plot for one control, consulting
// the advisory cache first. An empty series in range is the NoData
// outcome, never an empty image.
func (s *Service) RatingChart(ctx context.Context, username string, control domain.TimeControl, from, to time.Time) ([]byte, error) {
	from, to, err := s.resolveWindow(from, to)
	if err != nil {
		return nil, err
	}

	key := chartKey(username, control, from, to)
	if s.cache != nil {
		png, ok, cerr := s.cache.Get(ctx, key)
		if cerr != nil {
			s.log.Warn("chart cache read failed", zap.Error(cerr))
		} else if ok {
			return png, nil
		}
	}

	history, err := s.upstream.RatingHistory(ctx, username, control)
	if err != nil {
		return nil, err
	}
	points := WindowPoints(history, from, to)
	if len(points) == 0 {
		return nil, statsdto.NoData(fmt.Sprintf("no %s rating history for %s in range", control, username))
	}

	png, err := s.renderer.Render(points, from, to, username+" · "+control.String())
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if cerr := s.cache.Put(ctx, key, png); cerr != nil {
			s.log.Warn("chart cache write failed", zap.Error(cerr))
		}
	}
	return png, nil
}

// ExportPGN returns the player's last count games as one PGN document.
// The document is validated record by record before it is handed out; a
// document with no readable game at all is an upstream failure, while
// individual unreadable records are counted and logged like on the NDJSON
// path.
func (s *Service) ExportPGN(ctx context.Context, username string, count int) (string, error) {
	if count <= 0 {
		count = 5
	}
	if count > s.opts.PGNExportLimit {
		count = s.opts.PGNExportLimit
	}
	text, err := s.upstream.ExportPGN(ctx, username, count)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", statsdto.NoData("no games to export for " + username)
	}
	games, skipped := lichess.NormalizePGN(username, text)
	if len(games) == 0 {
		return "", statsdto.Unavailable("pgn export could not be parsed", nil)
	}
	if skipped > 0 {
		s.log.Info("skipped malformed pgn records",
			zap.String("username", username), zap.Int("skipped", skipped))
	}
	return text, nil
}

// RandomTopGame picks a random seed player and returns their latest blitz
// game.
func (s *Service) RandomTopGame(ctx context.Context) (domain.GameRef, error) {
	if len(s.opts.SeedPlayers) == 0 {
		return domain.GameRef{}, statsdto.NoData("no seed players configured")
	}
	seed := s.opts.SeedPlayers[s.pick(len(s.opts.SeedPlayers))]
	games, _, err := s.upstream.Games(ctx, lichess.GamesQuery{
		Username: seed,
		Max:      1,
		Control:  domain.Blitz.String(),
	})
	if err != nil {
		return domain.GameRef{}, err
	}
	if len(games) == 0 {
		return domain.GameRef{}, statsdto.NoData(seed + " has no blitz games yet")
	}
	return domain.GameRef{
		ID:       games[0].ID,
		URL:      s.opts.GameURLBase + "/" + games[0].ID,
		Username: seed,
	}, nil
}

// CachedPlayer reads the latest known snapshot from the directory store.
func (s *Service) CachedPlayer(ctx context.Context, username string) (domain.PlayerSnapshot, error) {
	if s.store == nil {
		return domain.PlayerSnapshot{}, statsdto.Unavailable("player directory not configured", nil)
	}
	snap, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return domain.PlayerSnapshot{}, statsdto.Unavailable("player directory read failed", err)
	}
	if snap == nil {
		return domain.PlayerSnapshot{}, statsdto.NotFound("no cached snapshot for " + username)
	}
	return *snap, nil
}

// ForgetPlayer removes a player's cached snapshot from the directory.
func (s *Service) ForgetPlayer(ctx context.Context, username string) error {
	if s.store == nil {
		return statsdto.Unavailable("player directory not configured", nil)
	}
	snap, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		return statsdto.Unavailable("player directory read failed", err)
	}
	if snap == nil {
		return statsdto.NotFound("no cached snapshot for " + username)
	}
	if err := s.store.Delete(ctx, snap.ID); err != nil {
		return statsdto.Unavailable("player directory delete failed", err)
	}
	return nil
}

// resolveWindow applies the 30-day default, forces UTC, and rejects
// inverted or oversized spans before anything touches the network.
func (s *Service) resolveWindow(from, to time.Time) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	if to.IsZero() {
		to = now
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -s.opts.DefaultWindowDays)
	}
	from, to = from.UTC(), to.UTC()
	if from.After(to) {
		return time.Time{}, time.Time{}, statsdto.InvalidRange("range start is after its end")
	}
	if to.Sub(from) > time.Duration(s.opts.MaxWindowDays)*24*time.Hour {
		return time.Time{}, time.Time{}, statsdto.InvalidRange(
			fmt.Sprintf("range exceeds the %d-day maximum", s.opts.MaxWindowDays))
	}
	return from, to, nil
}

func chartKey(username string, control domain.TimeControl, from, to time.Time) string {
	return "chart:" + strings.ToLower(username) + ":" + control.String() + ":" +
		strconv.FormatInt(from.Unix(), 10) + ":" + strconv.FormatInt(to.Unix(), 10)
}

func firstErr(errs ...error) error {
	var fallback error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if statsdto.IsKind(err, statsdto.KindCancelled) {
			continue // prefer the causing failure over its cancellation echo
		}
		if fallback == nil {
			fallback = err
		}
	}
	if fallback != nil {
		return fallback
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

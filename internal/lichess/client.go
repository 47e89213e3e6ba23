package lichess

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/coursova/lichess-stats-bot/internal/domain"
	"github.com/coursova/lichess-stats-bot/pkg/statsdto"
)

const (
	acceptNDJSON = "application/x-ndjson"
	acceptPGN    = "application/x-chess-pgn"

	// export lines can carry full move lists
	maxGameLine = 4 * 1024 * 1024
)

// Client talks to the Lichess REST API. It maps upstream status codes into
// the typed outcome taxonomy and never retries on its own: rate limiting
// and outages bubble up so the caller can decide.
type Client struct {
	baseURL string
	token   string
	agent   string

	http   *fasthttp.Client
	stream *fasthttp.Client

	defaultTimeout time.Duration
	log            *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

func WithUserAgent(agent string) Option {
	return func(c *Client) { c.agent = agent }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		agent:   "lichess-stats-bot",
		http: &fasthttp.Client{
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			MaxConnsPerHost: 16,
		},
		stream: &fasthttp.Client{
			ReadTimeout:        60 * time.Second,
			WriteTimeout:       15 * time.Second,
			MaxConnsPerHost:    16,
			StreamResponseBody: true,
		},
		defaultTimeout: 15 * time.Second,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile fetches a fresh player snapshot.
func (c *Client) Profile(ctx context.Context, username string) (domain.PlayerSnapshot, error) {
	body, err := c.get(ctx, c.http, "/api/user/"+url.PathEscape(username), "", "application/json")
	if err != nil {
		return domain.PlayerSnapshot{}, err
	}
	var p profilePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return domain.PlayerSnapshot{}, statsdto.Unavailable("malformed profile body", err)
	}
	return normalizeProfile(p, time.Now().UTC()), nil
}

// ExportGames opens a streamed NDJSON game export. The returned stream is
// finite and non-restartable; the caller consumes it once and must Close it.
func (c *Client) ExportGames(ctx context.Context, q GamesQuery) (*GameStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, statsdto.Cancelled(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/api/games/user/" + url.PathEscape(q.Username) + "?" + gamesQueryValues(q).Encode())
	req.Header.Set(fasthttp.HeaderAccept, acceptNDJSON)
	c.decorate(req)

	if err := c.stream.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, c.mapTransportErr(ctx, err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		err := c.mapStatus(status, resp.Body())
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
		return nil, err
	}

	return &GameStream{
		req:  req,
		resp: resp,
		br:   bufio.NewReaderSize(resp.BodyStream(), 64*1024),
	}, nil
}

// Games opens an export stream and drains it into normalized records,
// returning the games plus the malformed-record skip count.
func (c *Client) Games(ctx context.Context, q GamesQuery) ([]domain.Game, int, error) {
	stream, err := c.ExportGames(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	return CollectGames(ctx, stream, q.Username, c.log)
}

// ExportPGN fetches the player's most recent count games as one PGN
// document. Unlike ExportGames the body is small and read whole.
func (c *Client) ExportPGN(ctx context.Context, username string, count int) (string, error) {
	if count <= 0 {
		count = 1
	}
	q := url.Values{}
	q.Set("max", strconv.Itoa(count))
	q.Set("moves", "true")
	q.Set("opening", "true")
	body, err := c.get(ctx, c.http, "/api/games/user/"+url.PathEscape(username), q.Encode(), acceptPGN)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RatingHistory fetches the full per-control rating series and extracts the
// requested control. A control the player never touched yields an empty
// slice, not an error; the caller decides what "no data" means.
func (c *Client) RatingHistory(ctx context.Context, username string, control domain.TimeControl) ([]domain.RatingPoint, error) {
	body, err := c.get(ctx, c.http, "/api/user/"+url.PathEscape(username)+"/rating-history", "", "application/json")
	if err != nil {
		return nil, err
	}
	var entries []ratingHistoryEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, statsdto.Unavailable("malformed rating history body", err)
	}
	for _, e := range entries {
		if !strings.EqualFold(e.Name, control.String()) {
			continue
		}
		points := make([]domain.RatingPoint, 0, len(e.Points))
		for _, p := range e.Points {
			points = append(points, domain.RatingPoint{
				At:     time.Date(p[0], time.Month(p[1]+1), p[2], 0, 0, 0, 0, time.UTC),
				Rating: p[3],
			})
		}
		sort.SliceStable(points, func(i, j int) bool { return points[i].At.Before(points[j].At) })
		return points, nil
	}
	return nil, nil
}

func (c *Client) get(ctx context.Context, hc *fasthttp.Client, path, query, accept string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, statsdto.Cancelled(err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	uri := c.baseURL + path
	if query != "" {
		uri += "?" + query
	}
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(uri)
	req.Header.Set(fasthttp.HeaderAccept, accept)
	c.decorate(req)

	if err := hc.DoDeadline(req, resp, c.computeDeadline(ctx)); err != nil {
		return nil, c.mapTransportErr(ctx, err)
	}
	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		return nil, c.mapStatus(status, resp.Body())
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

func (c *Client) decorate(req *fasthttp.Request) {
	req.Header.SetUserAgent(c.agent)
	if c.token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+c.token)
	}
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func (c *Client) mapTransportErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return statsdto.Cancelled(ctxErr)
	}
	if err == fasthttp.ErrTimeout {
		return statsdto.Unavailable("upstream timeout", err)
	}
	return statsdto.Unavailable("upstream request failed", err)
}

func (c *Client) mapStatus(status int, body []byte) error {
	switch status {
	case fasthttp.StatusNotFound:
		return statsdto.NotFound("player not found upstream")
	case fasthttp.StatusTooManyRequests:
		return statsdto.RateLimited("upstream throttling, try again later")
	default:
		c.log.Warn("unexpected upstream status",
			zap.Int("status", status),
			zap.String("body", truncate(string(body), 256)))
		return statsdto.Unavailable(fmt.Sprintf("upstream status %d", status), nil)
	}
}

func gamesQueryValues(q GamesQuery) url.Values {
	v := url.Values{}
	if q.Max > 0 {
		v.Set("max", strconv.Itoa(q.Max))
	}
	if q.Control != "" {
		v.Set("perfType", q.Control)
	}
	if !q.Since.IsZero() {
		v.Set("since", strconv.FormatInt(q.Since.UnixMilli(), 10))
	}
	if !q.Until.IsZero() {
		v.Set("until", strconv.FormatInt(q.Until.UnixMilli(), 10))
	}
	if q.Color != "" {
		v.Set("color", q.Color)
	}
	v.Set("moves", "true")
	v.Set("opening", "true")
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

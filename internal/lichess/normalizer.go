package lichess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/coursova/lichess-stats-bot/internal/domain"
)

// The normalizer is pure over raw payloads: it turns upstream wire records
// into domain.Game values resolved to the requesting player's perspective.
// A malformed record is skipped and counted, never aborts the batch.

func normalizeProfile(p profilePayload, fetchedAt time.Time) domain.PlayerSnapshot {
	snap := domain.PlayerSnapshot{
		Username:   p.Username,
		Title:      p.Title,
		Flag:       p.Profile.Flag,
		Ratings:    map[domain.TimeControl]domain.RatingLine{},
		TotalGames: p.Count.All,
		CreatedAt:  time.UnixMilli(p.CreatedAt).UTC(),
		LastSeen:   time.UnixMilli(p.SeenAt).UTC(),
		FetchedAt:  fetchedAt,
	}
	if snap.Flag == "" {
		snap.Flag = p.Profile.Country
	}
	for name, perf := range p.Perfs {
		tc, ok := domain.ParseTimeControl(name)
		if !ok || perf.Games == 0 {
			continue
		}
		snap.Ratings[tc] = domain.RatingLine{
			Rating:      perf.Rating,
			Games:       perf.Games,
			Provisional: perf.Provisional,
		}
	}
	return snap
}

// NormalizeGame decodes one NDJSON export line relative to username.
func NormalizeGame(username string, raw []byte) (domain.Game, error) {
	var e exportedGame
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.Game{}, fmt.Errorf("decode game record: %w", err)
	}
	if e.ID == "" {
		return domain.Game{}, fmt.Errorf("game record missing id")
	}
	if e.CreatedAt == 0 {
		return domain.Game{}, fmt.Errorf("game %s missing timestamp", e.ID)
	}

	white := e.Players.White.User.Name
	black := e.Players.Black.User.Name
	var color domain.Color
	switch {
	case strings.EqualFold(white, username):
		color = domain.White
	case strings.EqualFold(black, username):
		color = domain.Black
	default:
		return domain.Game{}, fmt.Errorf("game %s does not involve %s", e.ID, username)
	}

	tc, ok := speedCategory(e.Speed)
	if !ok {
		return domain.Game{}, fmt.Errorf("game %s has unknown speed %q", e.ID, e.Speed)
	}

	return domain.Game{
		ID:        e.ID,
		White:     white,
		Black:     black,
		Color:     color,
		Result:    resolveResult(color, e.Winner),
		Control:   tc,
		PlayedAt:  time.UnixMilli(e.CreatedAt).UTC(),
		ECO:       e.Opening.ECO,
		Opening:   e.Opening.Name,
		MovesText: e.Moves,
		Rated:     e.Rated,
	}, nil
}

// CollectGames drains a stream record by record, normalizing as payloads
// arrive so peak memory stays bounded to one record plus the results. The
// skipped count lets callers tell "zero games" from "parse failures".
func CollectGames(ctx context.Context, stream *GameStream, username string, log *zap.Logger) ([]domain.Game, int, error) {
	defer stream.Close()
	if log == nil {
		log = zap.NewNop()
	}

	var games []domain.Game
	skipped := 0
	for {
		raw, err := stream.Next(ctx)
		if err == io.EOF {
			return games, skipped, nil
		}
		if err == errRecordTooLong {
			skipped++
			log.Debug("skipping oversized game record")
			continue
		}
		if err != nil {
			return nil, 0, err
		}
		g, nerr := NormalizeGame(username, raw)
		if nerr != nil {
			skipped++
			log.Debug("skipping malformed game record", zap.Error(nerr))
			continue
		}
		games = append(games, g)
	}
}

var pgnTagRe = regexp.MustCompile(`\[(\w+)\s+"([^"]*)"\]`)

// NormalizePGN decodes a multi-game PGN document relative to username.
// Returns the normalized games plus the count of records skipped as
// malformed.
func NormalizePGN(username, document string) ([]domain.Game, int) {
	var games []domain.Game
	skipped := 0
	for _, block := range splitPGN(document) {
		g, err := normalizePGNGame(username, block)
		if err != nil {
			skipped++
			continue
		}
		games = append(games, g)
	}
	return games, skipped
}

func normalizePGNGame(username, block string) (domain.Game, error) {
	tags := map[string]string{}
	for _, m := range pgnTagRe.FindAllStringSubmatch(block, -1) {
		tags[m[1]] = m[2]
	}
	white := tags["White"]
	black := tags["Black"]
	if white == "" || black == "" {
		return domain.Game{}, fmt.Errorf("pgn game missing player tags")
	}
	var color domain.Color
	switch {
	case strings.EqualFold(white, username):
		color = domain.White
	case strings.EqualFold(black, username):
		color = domain.Black
	default:
		return domain.Game{}, fmt.Errorf("pgn game does not involve %s", username)
	}

	// Parse the movetext with the chess library; an illegal move list marks
	// the record malformed.
	pgnOpt, err := nchess.PGN(strings.NewReader(block))
	if err != nil {
		return domain.Game{}, fmt.Errorf("parse pgn: %w", err)
	}
	game := nchess.NewGame(pgnOpt)

	var result domain.Result
	switch game.Outcome() {
	case nchess.WhiteWon:
		result = domain.Win
		if color == domain.Black {
			result = domain.Loss
		}
	case nchess.BlackWon:
		result = domain.Loss
		if color == domain.Black {
			result = domain.Win
		}
	default:
		result = domain.Draw
	}

	playedAt, err := parsePGNTimestamp(tags["UTCDate"], tags["UTCTime"])
	if err != nil {
		return domain.Game{}, err
	}

	return domain.Game{
		ID:        gameIDFromSite(tags["Site"]),
		White:     white,
		Black:     black,
		Color:     color,
		Result:    result,
		Control:   clockCategory(tags["TimeControl"]),
		PlayedAt:  playedAt,
		ECO:       tags["ECO"],
		Opening:   tags["Opening"],
		MovesText: movesText(block),
		Rated:     true,
	}, nil
}

func splitPGN(document string) []string {
	var blocks []string
	var cur strings.Builder
	inTags := false
	for _, line := range strings.Split(document, "\n") {
		if strings.HasPrefix(line, "[Event ") && cur.Len() > 0 && !inTags {
			blocks = append(blocks, cur.String())
			cur.Reset()
		}
		inTags = strings.HasPrefix(line, "[")
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	if strings.TrimSpace(cur.String()) != "" {
		blocks = append(blocks, cur.String())
	}
	return blocks
}

func movesText(block string) string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "[") {
			continue
		}
		lines = append(lines, trimmed)
	}
	return strings.Join(lines, " ")
}

func gameIDFromSite(site string) string {
	if idx := strings.LastIndex(site, "/"); idx >= 0 {
		return site[idx+1:]
	}
	return site
}

func parsePGNTimestamp(date, clock string) (time.Time, error) {
	if date == "" {
		return time.Time{}, fmt.Errorf("pgn game missing UTCDate")
	}
	if clock == "" {
		clock = "00:00:00"
	}
	t, err := time.ParseInLocation("2006.01.02 15:04:05", date+" "+clock, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse pgn timestamp: %w", err)
	}
	return t, nil
}

func speedCategory(speed string) (domain.TimeControl, bool) {
	switch speed {
	case "ultraBullet", "bullet":
		return domain.Bullet, true
	case "blitz":
		return domain.Blitz, true
	case "rapid":
		return domain.Rapid, true
	case "classical", "correspondence":
		return domain.Classical, true
	}
	return 0, false
}

// clockCategory buckets a PGN TimeControl tag ("base+increment" seconds)
// the way Lichess does: estimated duration = base + 40*increment.
func clockCategory(tc string) domain.TimeControl {
	base, inc, ok := parseClock(tc)
	if !ok {
		return domain.Classical // correspondence games carry "-"
	}
	total := base + 40*inc
	switch {
	case total < 180:
		return domain.Bullet
	case total < 480:
		return domain.Blitz
	case total < 1500:
		return domain.Rapid
	default:
		return domain.Classical
	}
}

func parseClock(tc string) (base, inc int, ok bool) {
	parts := strings.SplitN(tc, "+", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	base, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	inc, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return base, inc, true
}

func resolveResult(color domain.Color, winner string) domain.Result {
	switch winner {
	case "white":
		if color == domain.White {
			return domain.Win
		}
		return domain.Loss
	case "black":
		if color == domain.Black {
			return domain.Win
		}
		return domain.Loss
	}
	// no winner field covers draws, stalemates and aborted games
	return domain.Draw
}

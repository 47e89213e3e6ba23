package directory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/coursova/lichess-stats-bot/internal/domain"
)

// Postgres keeps the latest known snapshot per username. Correctness under
// concurrent writers comes from the ON CONFLICT upsert, not in-process
// locking.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open directory db: %w", err)
	}
	return &Postgres{db: db}, nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS player_snapshots (
		id           UUID PRIMARY KEY,
		username     TEXT NOT NULL,
		username_key TEXT NOT NULL UNIQUE,
		title        TEXT NOT NULL DEFAULT '',
		flag         TEXT NOT NULL DEFAULT '',
		ratings      JSONB NOT NULL DEFAULT '{}',
		total_games  INTEGER NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ,
		last_seen    TIMESTAMPTZ,
		fetched_at   TIMESTAMPTZ
	)`

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping directory db: %w", err)
	}
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create player_snapshots: %w", err)
	}
	return nil
}

func (p *Postgres) Upsert(ctx context.Context, snap domain.PlayerSnapshot) error {
	ratings, err := encodeRatings(snap.Ratings)
	if err != nil {
		return fmt.Errorf("marshal ratings: %w", err)
	}
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO player_snapshots (
			id, username, username_key, title, flag,
			ratings, total_games, created_at, last_seen, fetched_at
		)
		VALUES ($1, $2, LOWER($2), $3, $4, $5::jsonb, $6, $7, $8, $9)
		ON CONFLICT (username_key)
		DO UPDATE SET
			username    = EXCLUDED.username,
			title       = EXCLUDED.title,
			flag        = EXCLUDED.flag,
			ratings     = EXCLUDED.ratings,
			total_games = EXCLUDED.total_games,
			created_at  = EXCLUDED.created_at,
			last_seen   = EXCLUDED.last_seen,
			fetched_at  = EXCLUDED.fetched_at`

	_, err = p.db.ExecContext(
		ctx,
		query,
		snap.ID,
		snap.Username,
		snap.Title,
		snap.Flag,
		ratings,
		snap.TotalGames,
		snap.CreatedAt,
		snap.LastSeen,
		snap.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) GetByUsername(ctx context.Context, username string) (*domain.PlayerSnapshot, error) {
	const query = `
		SELECT id, username, title, flag, ratings,
		       total_games, created_at, last_seen, fetched_at
		FROM player_snapshots
		WHERE username_key = $1
		LIMIT 1`

	var (
		snap        domain.PlayerSnapshot
		ratingsJSON []byte
	)
	err := p.db.QueryRowContext(ctx, query, strings.ToLower(username)).Scan(
		&snap.ID,
		&snap.Username,
		&snap.Title,
		&snap.Flag,
		&ratingsJSON,
		&snap.TotalGames,
		&snap.CreatedAt,
		&snap.LastSeen,
		&snap.FetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player snapshot: %w", err)
	}
	snap.Ratings, err = decodeRatings(ratingsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal ratings: %w", err)
	}
	return &snap, nil
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM player_snapshots WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete player snapshot: %w", err)
	}
	return nil
}

func (p *Postgres) Close() error { return p.db.Close() }

type ratingRow struct {
	Rating      int  `json:"rating"`
	Games       int  `json:"games"`
	Provisional bool `json:"prov,omitempty"`
}

func encodeRatings(ratings map[domain.TimeControl]domain.RatingLine) ([]byte, error) {
	out := make(map[string]ratingRow, len(ratings))
	for tc, line := range ratings {
		out[tc.String()] = ratingRow{Rating: line.Rating, Games: line.Games, Provisional: line.Provisional}
	}
	return json.Marshal(out)
}

func decodeRatings(raw []byte) (map[domain.TimeControl]domain.RatingLine, error) {
	var rows map[string]ratingRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	out := make(map[domain.TimeControl]domain.RatingLine, len(rows))
	for name, row := range rows {
		tc, ok := domain.ParseTimeControl(name)
		if !ok {
			continue
		}
		out[tc] = domain.RatingLine{Rating: row.Rating, Games: row.Games, Provisional: row.Provisional}
	}
	return out, nil
}

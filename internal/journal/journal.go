// Package journal persists final transcripts and their translations in
// PostgreSQL so a session can be reviewed afterwards.
//
//	j, err := journal.Open(ctx, "postgres://realtalk@localhost/realtalk")
//	if err != nil { … }
//	defer j.Close()
//	_ = j.Final(ctx, translation)
//	recent, _ := j.Recent(ctx, sessionID, 20)
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/realtalk/internal/sink"
	"github.com/MrWong99/realtalk/pkg/types"
)

var _ sink.Sink = (*Journal)(nil)

// Journal is a [sink.Sink] that stores finals. Safe for concurrent use.
type Journal struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies the connection and runs [Migrate].
func Open(ctx context.Context, dsn string) (*Journal, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal: parse dsn: %v: %w", err, types.ErrConfig)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Journal{pool: pool}, nil
}

// Partial implements [sink.Sink]. Partials are not persisted.
func (j *Journal) Partial(context.Context, string, types.TranscriptEvent) error { return nil }

// Final implements [sink.Sink]. It appends tr to the translations table.
func (j *Journal) Final(ctx context.Context, tr types.Translation) error {
	const q = `
		INSERT INTO translations
		    (session_id, source_lang, target_lang, original, translation, truncated, degraded, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	at := tr.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.pool.Exec(ctx, q,
		tr.SessionID,
		string(tr.Source),
		string(tr.Target),
		tr.Original,
		tr.Text,
		tr.Truncated,
		tr.Degraded,
		at,
	)
	if err != nil {
		return fmt.Errorf("journal: write final: %w", err)
	}
	return nil
}

// Recent returns up to limit translations of sessionID, oldest first.
func (j *Journal) Recent(ctx context.Context, sessionID string, limit int) ([]types.Translation, error) {
	const q = `
		SELECT session_id, source_lang, target_lang, original, translation, truncated, degraded, created_at
		FROM (
		    SELECT * FROM translations
		    WHERE  session_id = $1
		    ORDER  BY created_at DESC, id DESC
		    LIMIT  $2
		) latest
		ORDER BY created_at, id`

	if limit <= 0 {
		limit = 50
	}
	rows, err := j.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.Translation, error) {
		var (
			tr       types.Translation
			src, tgt string
		)
		if err := row.Scan(&tr.SessionID, &src, &tgt, &tr.Original, &tr.Text, &tr.Truncated, &tr.Degraded, &tr.At); err != nil {
			return types.Translation{}, err
		}
		tr.Source, tr.Target = types.Lang(src), types.Lang(tgt)
		return tr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: scan rows: %w", err)
	}
	if out == nil {
		out = []types.Translation{}
	}
	return out, nil
}

// Ping reports whether the database is reachable. Used as a readiness check.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Name implements [sink.Sink].
func (j *Journal) Name() string { return "journal" }

// Close implements [sink.Sink].
func (j *Journal) Close() error {
	j.pool.Close()
	return nil
}

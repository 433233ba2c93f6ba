package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlTranslations = `
CREATE TABLE IF NOT EXISTS translations (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    source_lang  TEXT         NOT NULL,
    target_lang  TEXT         NOT NULL,
    original     TEXT         NOT NULL,
    translation  TEXT         NOT NULL,
    truncated    BOOLEAN      NOT NULL DEFAULT false,
    degraded     BOOLEAN      NOT NULL DEFAULT false,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_translations_session_created
    ON translations (session_id, created_at);
`

// Migrate creates the journal table. It is idempotent and runs on every
// [Open].
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlTranslations); err != nil {
		return fmt.Errorf("journal migrate: %w", err)
	}
	return nil
}

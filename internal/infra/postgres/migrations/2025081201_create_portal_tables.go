package migrations

import (
	"context"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

const createPortalTablesSQL = `
CREATE TABLE IF NOT EXISTS quizzes (
    id   TEXT PRIMARY KEY,
    seq  BIGSERIAL,
    data JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
    id   TEXT PRIMARY KEY,
    seq  BIGSERIAL,
    data JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS results_quiz_status_idx
    ON results ((data->>'quizId'), (data->>'status'));

CREATE TABLE IF NOT EXISTS practice_sets (
    id   TEXT PRIMARY KEY,
    seq  BIGSERIAL,
    data JSONB NOT NULL
);
`

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createPortalTablesSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`DROP TABLE IF EXISTS practice_sets; DROP TABLE IF EXISTS results; DROP TABLE IF EXISTS quizzes`)
			return err
		},
	)
}

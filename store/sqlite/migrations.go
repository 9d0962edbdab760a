package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credits store (SQLite).
var Migrations = migrate.NewGroup("credits")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_credit_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS credit_accounts (
    uid                  TEXT PRIMARY KEY,
    email                TEXT NOT NULL DEFAULT '',
    display_name         TEXT NOT NULL DEFAULT '',
    photo_url            TEXT NOT NULL DEFAULT '',
    plan                 TEXT NOT NULL DEFAULT 'free',
    credits              INTEGER NOT NULL DEFAULT 0 CHECK (credits >= 0),
    template_credits     INTEGER NOT NULL DEFAULT 0,
    created_at           INTEGER NOT NULL DEFAULT 0,
    last_login           INTEGER NOT NULL DEFAULT 0,
    last_credit_reset    INTEGER NOT NULL DEFAULT 0,
    use_personal_api_key INTEGER NOT NULL DEFAULT 0,
    credit_history       TEXT NOT NULL DEFAULT '[]',
    revision             INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_credit_accounts_plan ON credit_accounts (plan);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS credit_accounts`)
				return err
			},
		},
	)
}

package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the credits store.
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
    credits              BIGINT NOT NULL DEFAULT 0 CHECK (credits >= 0),
    template_credits     BIGINT NOT NULL DEFAULT 0,
    created_at           BIGINT NOT NULL DEFAULT 0,
    last_login           BIGINT NOT NULL DEFAULT 0,
    last_credit_reset    BIGINT NOT NULL DEFAULT 0,
    use_personal_api_key BOOLEAN NOT NULL DEFAULT FALSE,
    credit_history       JSONB NOT NULL DEFAULT '[]',
    revision             BIGINT NOT NULL DEFAULT 0
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

package database

import (
	"context"
	"embed"
	"fmt"
	"path"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrations embed.FS

func (d Dialect) migrationDir() string {
	if d == Postgres {
		return path.Join("migrations", "postgres")
	}
	return path.Join("migrations", "sqlite")
}

// Migrate brings the schema up to date.
func Migrate(ctx context.Context, db *DB, logger logrus.FieldLogger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(logger)

	if err := goose.SetDialect(string(db.Dialect)); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db.DB, db.Dialect.migrationDir()); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// ResetSequences moves Postgres id sequences past explicitly inserted ids.
// SQLite AUTOINCREMENT tracks the maximum on its own.
func ResetSequences(ctx context.Context, db *DB, tables ...string) error {
	if db.Dialect != Postgres {
		return nil
	}
	for _, table := range tables {
		query := fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 0) + 1, false)",
			table,
		)
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("reset %s sequence: %w", table, err)
		}
	}
	return nil
}

// Package migrations embeds the SQL schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed *.sql
var embedMigrations embed.FS

// lockKey is the advisory lock that keeps two migrators from running at once.
const lockKey = 7462839

// gooseLogger routes goose output through zap.
type gooseLogger struct {
	s *zap.SugaredLogger
}

func (l gooseLogger) Fatalf(format string, v ...any) { l.s.Fatalf(format, v...) }
func (l gooseLogger) Printf(format string, v ...any) { l.s.Infof(format, v...) }

func open(dsn string, logger *zap.Logger) (*sql.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{s: logger.Named("migrations").Sugar()})
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("failed to set goose dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	return db, nil
}

// acquireLock takes the migration advisory lock on a dedicated connection. The
// returned func releases it and the connection.
func acquireLock(ctx context.Context, db *sql.DB) (func(), error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection for lock: %w", err)
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", lockKey).Scan(&locked); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to query advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return nil, errors.New("another migrator is currently running")
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", lockKey)
		conn.Close()
	}, nil
}

// Up applies every pending migration.
func Up(ctx context.Context, dsn string, logger *zap.Logger) error {
	db, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	unlock, err := acquireLock(ctx, db)
	if err != nil {
		return err
	}
	defer unlock()
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, dsn string, logger *zap.Logger) error {
	db, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	unlock, err := acquireLock(ctx, db)
	if err != nil {
		return err
	}
	defer unlock()
	if err := goose.DownContext(ctx, db, "."); err != nil {
		return fmt.Errorf("failed to roll back migration: %w", err)
	}
	return nil
}

// Status logs the applied state of every migration.
func Status(ctx context.Context, dsn string, logger *zap.Logger) error {
	db, err := open(dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	return goose.StatusContext(ctx, db, ".")
}

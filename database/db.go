package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDuplicateRole is returned by Add when the guild already tracks the timezone.
var ErrDuplicateRole = errors.New("timezone is already tracked in this guild")

// DB is the role registry. Every call borrows a connection from the pool
// held by sqlx, so unrelated operations never wait on each other.
type DB struct {
	*sqlx.DB
	statsUpdater func()
	logger       *zap.Logger
}

// New connects to the database, verifies connectivity and applies the
// embedded migrations. driver is "postgres" or "sqlite3".
// statsUpdater, when non-nil, is called after every successful mutation.
func New(ctx context.Context, driver, dsn string, statsUpdater func(), logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database ready", zap.String("driver", driver))
	return &DB{DB: db, statsUpdater: statsUpdater, logger: logger}, nil
}

// SetStatsUpdater replaces the mutation callback.
func (db *DB) SetStatsUpdater(fn func()) {
	db.statsUpdater = fn
}

// migrate runs the embedded SQL files in name order. Every statement is
// idempotent so it is safe to run on each start.
func migrate(ctx context.Context, db *sqlx.DB) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}

func (db *DB) notify() {
	if db.statsUpdater != nil {
		db.statsUpdater()
	}
}

// guildTimezoneIndex is created by migrations/002_roles_guild_timezone.sql.
const guildTimezoneIndex = "roles_guild_timezone"

// isUniqueViolation reports whether err is a violation of guildTimezoneIndex.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && pqErr.Constraint == guildTimezoneIndex
	}

	// sqlite reports primary key violations with their own extended code
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

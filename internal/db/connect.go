package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts the usual aliases (pgx, postgresql, sqlite3).
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx", "pgsql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported driver %q (expected postgres/sqlite)", s)
}

// Open opens a DB, tunes the pool and ensures the schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:nopenalty.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/moodle?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// SQLite should not use many concurrent writers; keep pool small.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
	}
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		if _, err := db.ExecContext(ctx, `
			PRAGMA journal_mode = WAL;
			PRAGMA synchronous = NORMAL;
			PRAGMA busy_timeout = 5000;
		`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite pragmas: %w", err)
		}
	}
	if err := Migrate(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema (idempotent CREATE IF NOT EXISTS).
func Migrate(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}
	// Statements run one by one; not every driver accepts multi-statement scripts.
	for _, stmt := range splitSQL(schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed at: %s\nerror: %w", firstLine(stmt), err)
		}
	}
	return nil
}

// splitSQL naively splits on ';' boundaries; fine for the DDL below.
func splitSQL(s string) []string {
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p+";")
		}
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS no_penalty_finalgrades (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  courseid     INTEGER NOT NULL,
  userid       INTEGER NOT NULL,
  itemid       INTEGER NOT NULL,
  itemtype     TEXT NOT NULL,
  grademin     REAL NOT NULL DEFAULT 0,
  grademax     REAL NOT NULL DEFAULT 100,
  finalgrade   REAL NOT NULL,
  usermodified INTEGER NOT NULL DEFAULT 0,
  UNIQUE (courseid, userid, itemid)
);

CREATE INDEX IF NOT EXISTS no_penalty_finalgrades_course_user
  ON no_penalty_finalgrades (courseid, userid);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS no_penalty_finalgrades (
  id           BIGSERIAL PRIMARY KEY,
  courseid     BIGINT NOT NULL,
  userid       BIGINT NOT NULL,
  itemid       BIGINT NOT NULL,
  itemtype     TEXT NOT NULL,
  grademin     DOUBLE PRECISION NOT NULL DEFAULT 0,
  grademax     DOUBLE PRECISION NOT NULL DEFAULT 100,
  finalgrade   DOUBLE PRECISION NOT NULL,
  usermodified BIGINT NOT NULL DEFAULT 0,
  UNIQUE (courseid, userid, itemid)
);

CREATE INDEX IF NOT EXISTS no_penalty_finalgrades_course_user
  ON no_penalty_finalgrades (courseid, userid);
`

package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// Options selects the backend to connect to
type Options struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file, ":memory:" allowed
	URL    string // Postgres DSN
}

// Connect opens the database and makes sure the schema exists
func Connect(opts Options) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch opts.Driver {
	case "postgres":
		db, err = sqlx.Connect("postgres", opts.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to postgres")
		}
	case "sqlite", "":
		if opts.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
				return nil, errors.Wrap(err, "failed to create data directory")
			}
		}
		db, err = sqlx.Connect("sqlite3", opts.Path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to connect to sqlite")
		}
		// SQLite doesn't support multiple writers, and every connection to
		// :memory: would see its own database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	if err := InitSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitSchema creates the collections if they don't exist
func InitSchema(db *sqlx.DB) error {
	stmts := sqliteSchema
	if isPostgres(db) {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return errors.Wrap(err, "failed to initialize schema")
		}
	}
	return nil
}

func isPostgres(db *sqlx.DB) bool {
	return db.DriverName() == "postgres"
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS paragraphs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		text TEXT NOT NULL,
		translation_text TEXT NOT NULL,
		annotations TEXT NOT NULL DEFAULT '[]',
		focus_words TEXT NOT NULL DEFAULT '[]',
		last_reviewed_at TIMESTAMP NULL,
		successful_review_streak INTEGER NOT NULL DEFAULT 0,
		is_mastered BOOLEAN NOT NULL DEFAULT false,
		is_excluded BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS vocabulary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		term TEXT NOT NULL UNIQUE,
		meaning TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		source_paragraph_id INTEGER NOT NULL DEFAULT 0,
		last_reviewed_at TIMESTAMP NULL,
		successful_review_streak INTEGER NOT NULL DEFAULT 0,
		is_mastered BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vocabulary_paragraph ON vocabulary(source_paragraph_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS paragraphs (
		id BIGSERIAL PRIMARY KEY,
		text TEXT NOT NULL,
		translation_text TEXT NOT NULL,
		annotations TEXT NOT NULL DEFAULT '[]',
		focus_words TEXT NOT NULL DEFAULT '[]',
		last_reviewed_at TIMESTAMPTZ NULL,
		successful_review_streak INTEGER NOT NULL DEFAULT 0,
		is_mastered BOOLEAN NOT NULL DEFAULT false,
		is_excluded BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS vocabulary (
		id BIGSERIAL PRIMARY KEY,
		term TEXT NOT NULL UNIQUE,
		meaning TEXT NOT NULL,
		root TEXT NOT NULL DEFAULT '',
		source_paragraph_id BIGINT NOT NULL DEFAULT 0,
		last_reviewed_at TIMESTAMPTZ NULL,
		successful_review_streak INTEGER NOT NULL DEFAULT 0,
		is_mastered BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vocabulary_paragraph ON vocabulary(source_paragraph_id)`,
}

package db

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// dsnOptions turn on WAL and foreign keys for every connection of the pool.
const dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Repository implements the fetch, log and stats repositories of the domain package on one SQLite file.
type Repository struct {
	dbConn *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{dbConn: db}
}

// Close closes the audit database. The server drains its audit queue before calling it.
func (repo *Repository) Close() error {
	if err := repo.dbConn.Close(); err != nil {
		return fmt.Errorf("closing audit database : %w", err)
	}
	return nil
}

// New opens the audit database at path and brings its schema up to date.
// The pool holds a single connection: the audit writer is the only one writing and
// readers from /api/fetches wait for it rather than hitting SQLITE_BUSY.
func New(path string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("sqlite", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("opening audit database %s : %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// migrate applies the embedded goose migrations that are not recorded yet.
func migrate(db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(string(goose.DialectSQLite3)); err != nil {
		return fmt.Errorf("setting migration dialect : %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return fmt.Errorf("migrating audit database : %w", err)
	}
	return nil
}

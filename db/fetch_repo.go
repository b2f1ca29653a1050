package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
)

var _ domain.FetchRepository = (*Repository)(nil)

// ErrFetchNotFound is returned when no fetch matches the requested ID.
var ErrFetchNotFound = domain.ErrFetchNotFound

// dbFetch represents an upstream fetch attempt as stored in the database.
type dbFetch struct {
	ID          uuid.UUID      `db:"id"`
	Source      string         `db:"source"`
	URL         string         `db:"url"`
	StatusCode  int            `db:"status_code"`
	Outcome     string         `db:"outcome"`
	RecordCount int            `db:"record_count"`
	Error       sql.NullString `db:"error"`       // NULL on success
	DurationNS  int64          `db:"duration_ns"` // Duration in nanoseconds
	FetchedAt   time.Time      `db:"fetched_at"`
	Metadata    Metadata       `db:"metadata"`
}

// toDomainFetch converts a dbFetch to a domain.Fetch.
func toDomainFetch(dbFetch *dbFetch) *domain.Fetch {
	return &domain.Fetch{
		ID:          dbFetch.ID,
		Source:      domain.FetchSource(dbFetch.Source),
		URL:         dbFetch.URL,
		StatusCode:  dbFetch.StatusCode,
		Outcome:     domain.FetchOutcome(dbFetch.Outcome),
		RecordCount: dbFetch.RecordCount,
		Error:       dbFetch.Error.String,
		Duration:    time.Duration(dbFetch.DurationNS),
		FetchedAt:   dbFetch.FetchedAt,
		Metadata:    map[string]any(dbFetch.Metadata),
	}
}

// fromDomainFetch converts a domain.Fetch to a dbFetch.
func fromDomainFetch(fetch *domain.Fetch) *dbFetch {
	return &dbFetch{
		ID:          fetch.ID,
		Source:      string(fetch.Source),
		URL:         fetch.URL,
		StatusCode:  fetch.StatusCode,
		Outcome:     string(fetch.Outcome),
		RecordCount: fetch.RecordCount,
		Error:       sql.NullString{String: fetch.Error, Valid: fetch.Error != ""},
		DurationNS:  int64(fetch.Duration),
		FetchedAt:   fetch.FetchedAt.UTC(),
		Metadata:    Metadata(fetch.Metadata),
	}
}

// InsertFetch saves a fetch attempt to the database.
func (repo *Repository) InsertFetch(fetch *domain.Fetch) error {
	query := `INSERT INTO fetches (id, source, url, status_code, outcome, record_count, error, duration_ns, fetched_at, metadata)
	          VALUES (:id, :source, :url, :status_code, :outcome, :record_count, :error, :duration_ns, :fetched_at, :metadata)`

	_, err := repo.dbConn.NamedExec(query, fromDomainFetch(fetch))
	if err != nil {
		return fmt.Errorf("inserting fetch %s : %w", fetch.ID, err)
	}
	return nil
}

// GetFetch retrieves a single fetch attempt by its ID.
func (repo *Repository) GetFetch(id uuid.UUID) (*domain.Fetch, error) {
	var fetch dbFetch
	query := `SELECT * FROM fetches WHERE id = ?`

	err := repo.dbConn.Get(&fetch, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w : %s", ErrFetchNotFound, id)
		}
		return nil, fmt.Errorf("getting fetch %s : %w", id, err)
	}
	return toDomainFetch(&fetch), nil
}

// GetFetches retrieves the most recent fetch attempts, newest first.
// A limit of zero or less returns every stored attempt.
func (repo *Repository) GetFetches(limit int) ([]*domain.Fetch, error) {
	if limit <= 0 {
		limit = -1 // SQLite reads a negative LIMIT as no limit
	}

	var dbFetches []*dbFetch
	query := `SELECT * FROM fetches ORDER BY fetched_at DESC, id DESC LIMIT ?`

	err := repo.dbConn.Select(&dbFetches, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching fetches : %w", err)
	}

	fetches := make([]*domain.Fetch, len(dbFetches))
	for i, dbFetch := range dbFetches {
		fetches[i] = toDomainFetch(dbFetch)
	}
	return fetches, nil
}

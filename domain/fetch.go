package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrFetchNotFound is returned by FetchRepository.GetFetch for an unknown ID.
var ErrFetchNotFound = errors.New("fetch not found")

// FetchSource identifies which surface issued an upstream fetch.
type FetchSource string

const (
	FetchSourceDashboard FetchSource = "dashboard" // Fetch issued by a dashboard view
	FetchSourceProxy     FetchSource = "proxy"     // Fetch issued by the proxy endpoint
)

// FetchOutcome classifies how an upstream fetch ended.
type FetchOutcome string

const (
	FetchOutcomeOK     FetchOutcome = "ok"     // Records were decoded and validated
	FetchOutcomeStatus FetchOutcome = "status" // Upstream answered with a non-success status
	FetchOutcomeError  FetchOutcome = "error"  // Transport, decoding or validation failure
)

// FetchRepository defines the interface for persisting upstream fetch attempts.
type FetchRepository interface {
	// InsertFetch saves a fetch attempt.
	InsertFetch(fetch *Fetch) error

	// GetFetch retrieves a single fetch attempt by its ID.
	// It returns an error if the fetch does not exist.
	GetFetch(id uuid.UUID) (*Fetch, error)

	// GetFetches retrieves the most recent fetch attempts, newest first.
	// A limit of zero or less returns every stored attempt.
	GetFetches(limit int) ([]*Fetch, error)
}

// Fetch is the audit record of one upstream request.
type Fetch struct {
	ID          uuid.UUID      // Unique identifier (UUIDv7, time ordered)
	Source      FetchSource    // Surface that issued the fetch
	URL         string         // Upstream URL that was requested
	StatusCode  int            // Upstream HTTP status, 0 when no response was received
	Outcome     FetchOutcome   // How the fetch ended
	RecordCount int            // Number of records decoded on success
	Error       string         // Error message, empty on success
	Duration    time.Duration  // Wall time of the fetch
	FetchedAt   time.Time      // When the fetch started
	Metadata    map[string]any // Extra data, e.g. a prettified dump of a failing response
}

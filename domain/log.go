package domain

import (
	"time"

	"github.com/google/uuid"
)

// LogRepository stores the audit log written by the server next to the fetch rows.
type LogRepository interface {
	InsertLog(log *Log) error
	// GetLogs returns every entry, oldest first.
	GetLogs() ([]*Log, error)
	// GetFetchLogs returns the entries written about one upstream fetch, oldest first.
	GetFetchLogs(fetchID uuid.UUID) ([]*Log, error)
}

// Log is one audit entry.
// FetchID ties it to the upstream attempt it describes and SessionID to the dashboard
// that asked for that attempt. Server-level entries (startup, shutdown, listing errors) carry neither.
type Log struct {
	ID        uuid.UUID
	Timestamp time.Time
	Level     string // DEBUG, INFO, WARN or ERROR
	Message   string
	Context   map[string]any
	FetchID   *uuid.UUID
	SessionID *uuid.UUID
}

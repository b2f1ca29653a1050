package db

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
)

var _ domain.LogRepository = (*Repository)(nil)

const logColumns = `id, timestamp, level, message, context, fetch_id, session_id`

// logRow is the logs table layout, optional references are NULL rather than empty strings.
type logRow struct {
	ID        uuid.UUID     `db:"id"`
	Timestamp time.Time     `db:"timestamp"`
	Level     string        `db:"level"`
	Message   string        `db:"message"`
	Context   Metadata      `db:"context"`
	FetchID   uuid.NullUUID `db:"fetch_id"`
	SessionID uuid.NullUUID `db:"session_id"`
}

func newLogRow(log *domain.Log) *logRow {
	return &logRow{
		ID:        log.ID,
		Timestamp: log.Timestamp.UTC(),
		Level:     log.Level,
		Message:   log.Message,
		Context:   Metadata(log.Context),
		FetchID:   nullableID(log.FetchID),
		SessionID: nullableID(log.SessionID),
	}
}

func (row *logRow) toDomain() *domain.Log {
	return &domain.Log{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		Level:     row.Level,
		Message:   row.Message,
		Context:   map[string]any(row.Context),
		FetchID:   optionalID(row.FetchID),
		SessionID: optionalID(row.SessionID),
	}
}

func nullableID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func optionalID(id uuid.NullUUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	return &id.UUID
}

// InsertLog stores one audit entry.
// The logs table references fetches, so the fetch row has to be written first.
func (repo *Repository) InsertLog(log *domain.Log) error {
	query := `INSERT INTO logs (` + logColumns + `)
	          VALUES (:id, :timestamp, :level, :message, :context, :fetch_id, :session_id)`

	if _, err := repo.dbConn.NamedExec(query, newLogRow(log)); err != nil {
		return fmt.Errorf("inserting log %s : %w", log.ID, err)
	}
	return nil
}

func (repo *Repository) GetLogs() ([]*domain.Log, error) {
	return repo.selectLogs(`SELECT ` + logColumns + ` FROM logs ORDER BY timestamp, id`)
}

func (repo *Repository) GetFetchLogs(fetchID uuid.UUID) ([]*domain.Log, error) {
	return repo.selectLogs(`SELECT `+logColumns+` FROM logs WHERE fetch_id = ? ORDER BY timestamp, id`, fetchID)
}

func (repo *Repository) selectLogs(query string, args ...any) ([]*domain.Log, error) {
	var rows []*logRow
	if err := repo.dbConn.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("selecting logs : %w", err)
	}

	logs := make([]*domain.Log, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toDomain())
	}
	return logs, nil
}

// Package core holds the options Server.WriteLog accepts for an audit entry.
package core

import (
	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
)

// LogOption sets an optional field of an audit entry.
type LogOption = func(log *domain.Log) error

// LogWithContext attaches structured fields, stored as JSON in the context column.
func LogWithContext(fields map[string]any) LogOption {
	return func(log *domain.Log) error {
		log.Context = fields
		return nil
	}
}

// LogWithFetchID links the entry to the upstream fetch it reports on.
// GET /api/fetches/{id} lists the entries of a fetch through this link.
func LogWithFetchID(fetchID uuid.UUID) LogOption {
	return func(log *domain.Log) error {
		log.FetchID = &fetchID
		return nil
	}
}

// LogWithSessionID links the entry to the dashboard session that triggered it.
func LogWithSessionID(sessionID uuid.UUID) LogOption {
	return func(log *domain.Log) error {
		log.SessionID = &sessionID
		return nil
	}
}

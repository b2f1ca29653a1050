package db

import (
	"fmt"

	"github.com/tfkr-ae/liftoff/domain"
)

var _ domain.StatsRepository = (*Repository)(nil)

// CountFetches returns the total number of recorded upstream fetches.
func (repo *Repository) CountFetches() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM fetches`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting fetch count : %w", err)
	}

	return count, nil
}

// CountFailedFetches returns the number of fetches whose outcome was not ok.
func (repo *Repository) CountFailedFetches() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM fetches WHERE outcome != ?`

	err := repo.dbConn.Get(&count, query, string(domain.FetchOutcomeOK))
	if err != nil {
		return 0, fmt.Errorf("getting failed fetch count : %w", err)
	}

	return count, nil
}

// CountLogs returns the total number of stored log entries.
func (repo *Repository) CountLogs() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM logs`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting log count : %w", err)
	}

	return count, nil
}

package domain

// StatsRepository defines the interface for retrieving statistics about the audit data.
type StatsRepository interface {
	// CountFetches returns the total number of recorded upstream fetches.
	CountFetches() (int, error)
	// CountFailedFetches returns the number of fetches whose outcome was not ok.
	CountFailedFetches() (int, error)
	// CountLogs returns the total number of stored log entries.
	CountLogs() (int, error)
}

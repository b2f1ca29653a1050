package liftoff

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/core"
	"github.com/tfkr-ae/liftoff/dashboard"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/launches"
	"github.com/tfkr-ae/liftoff/upstream"
)

const (
	// ProxyStatusMessage is returned when the upstream answers with a non-success status
	ProxyStatusMessage = "Error fetching launches from SpaceX"
	// ProxyInternalMessage is returned for every other proxy failure
	ProxyInternalMessage = "Internal Server Error"
)

// outcomeOf classifies a fetch error.
func outcomeOf(err error) domain.FetchOutcome {
	switch {
	case err == nil:
		return domain.FetchOutcomeOK
	case errors.Is(err, upstream.ErrStatus):
		return domain.FetchOutcomeStatus
	default:
		return domain.FetchOutcomeError
	}
}

// fetch runs one upstream fetch and records it in the metrics and the audit log.
// The fetch row is queued before any log that references it.
func (server *Server) fetch(ctx context.Context, source domain.FetchSource) (*upstream.Attempt, error) {
	fetchedAt := time.Now()
	attempt, err := server.Upstream.FetchLaunches(ctx)
	outcome := outcomeOf(err)
	server.Metrics.ObserveFetch(source, outcome, attempt.Duration)

	id := attempt.ID
	if id == uuid.Nil {
		if generated, genErr := uuid.NewV7(); genErr == nil {
			id = generated
		}
	}
	fetch := &domain.Fetch{
		ID:          id,
		Source:      source,
		URL:         attempt.URL,
		StatusCode:  attempt.StatusCode,
		Outcome:     outcome,
		RecordCount: len(attempt.Launches),
		Duration:    attempt.Duration,
		FetchedAt:   fetchedAt,
		Metadata:    attempt.Metadata,
	}
	if err != nil {
		fetch.Error = err.Error()
	}
	server.enqueue(fetch)

	options := []func(*domain.Log) error{core.LogWithFetchID(id)}
	if sessionID, ok := dashboard.SessionIDFromContext(ctx); ok {
		options = append(options, core.LogWithSessionID(sessionID))
	}
	logContext := map[string]any{
		"source":      string(source),
		"status_code": attempt.StatusCode,
		"duration_ms": attempt.Duration.Milliseconds(),
	}
	if err != nil {
		logContext["error"] = err.Error()
		server.WriteLog("WARN", "upstream fetch failed", append(options, core.LogWithContext(logContext))...)
		return attempt, err
	}
	logContext["records"] = len(attempt.Launches)
	server.WriteLog("DEBUG", "upstream fetch", append(options, core.LogWithContext(logContext))...)
	return attempt, nil
}

func (server *Server) fetchForDashboard(ctx context.Context) ([]domain.Launch, error) {
	attempt, err := server.fetch(ctx, domain.FetchSourceDashboard)
	return attempt.Launches, err
}

// handleLatest forwards the ten most recent upstream records, newest first.
func (server *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")

	attempt, err := server.fetch(r.Context(), domain.FetchSourceProxy)
	if err != nil {
		if errors.Is(err, upstream.ErrStatus) {
			writeError(w, http.StatusInternalServerError, ProxyStatusMessage)
			return
		}
		writeError(w, http.StatusInternalServerError, ProxyInternalMessage)
		return
	}

	latest := launches.Latest(attempt.Launches, launches.LatestCount)
	records := make([]json.RawMessage, 0, len(latest))
	for _, record := range latest {
		raw := record.Raw
		if len(raw) == 0 {
			if raw, err = json.Marshal(record); err != nil {
				writeError(w, http.StatusInternalServerError, ProxyInternalMessage)
				return
			}
		}
		records = append(records, raw)
	}
	writeJSON(w, http.StatusOK, records)
}

package domain

import (
	"encoding/json"
	"time"
)

// Launch is a single launch record as received from the upstream API.
// Only the fields consumed by liftoff are kept, every other upstream field is ignored.
// Launch values are read-only once decoded; callers must copy slices before reordering them.
type Launch struct {
	ID           string    `json:"id"`            // Opaque unique identifier
	Name         string    `json:"name"`          // Display name of the mission
	Success      *bool     `json:"success"`       // Outcome, nil when unknown (e.g. upcoming launches)
	DateUTC      time.Time `json:"date_utc"`      // Launch date, the sole sort key
	Details      string    `json:"details"`       // Free-text description, empty when absent
	FlightNumber int       `json:"flight_number"` // Flight ordinal
	Links        Links     `json:"links"`         // Media and external references

	Raw json.RawMessage `json:"-"` // Upstream element as received, forwarded verbatim by the proxy endpoint
}

// Links groups the optional media and external references of a launch.
type Links struct {
	Patch     Patch  `json:"patch"`
	YouTubeID string `json:"youtube_id,omitempty"`
	Article   string `json:"article,omitempty"`
	Webcast   string `json:"webcast,omitempty"`
	Wikipedia string `json:"wikipedia,omitempty"`
}

// Patch holds the mission patch image URLs.
type Patch struct {
	Small string `json:"small,omitempty"`
	Large string `json:"large,omitempty"`
}

// HasOutcome reports whether the launch outcome is known.
func (l Launch) HasOutcome() bool {
	return l.Success != nil
}

// Succeeded reports whether the launch is known to have succeeded.
func (l Launch) Succeeded() bool {
	return l.Success != nil && *l.Success
}

package upstream

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tfkr-ae/liftoff/domain"
)

// wireLaunch mirrors one element of the upstream listing. Every field is a pointer
// so that absent and null values can be told apart from zero values.
type wireLaunch struct {
	ID           *string    `json:"id"`
	Name         *string    `json:"name"`
	Success      *bool      `json:"success"` // absent and null both mean an unknown outcome
	DateUTC      *string    `json:"date_utc"`
	Details      *string    `json:"details"`
	FlightNumber *int       `json:"flight_number"`
	Links        *wireLinks `json:"links"`
}

type wireLinks struct {
	Patch *struct {
		Small *string `json:"small"`
		Large *string `json:"large"`
	} `json:"patch"`
	YouTubeID *string `json:"youtube_id"`
	Article   *string `json:"article"`
	Webcast   *string `json:"webcast"`
	Wikipedia *string `json:"wikipedia"`
}

// DecodeLaunches parses an upstream listing and validates every record.
// A single invalid record fails the whole listing with ErrInvalidRecord.
func DecodeLaunches(body []byte) ([]domain.Launch, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		return nil, fmt.Errorf("decoding launches : %w", err)
	}

	records := make([]domain.Launch, 0, len(elements))
	for i, raw := range elements {
		var w wireLaunch
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("%w : record %d : %w", ErrInvalidRecord, i, err)
		}
		record, err := w.toDomain()
		if err != nil {
			return nil, fmt.Errorf("%w : record %d : %w", ErrInvalidRecord, i, err)
		}
		record.Raw = raw
		records = append(records, record)
	}
	return records, nil
}

func (w wireLaunch) toDomain() (domain.Launch, error) {
	id := deref(w.ID)
	if strings.TrimSpace(id) == "" {
		return domain.Launch{}, fmt.Errorf("missing id")
	}
	name := deref(w.Name)
	if strings.TrimSpace(name) == "" {
		return domain.Launch{}, fmt.Errorf("launch %s : missing name", id)
	}
	if w.DateUTC == nil {
		return domain.Launch{}, fmt.Errorf("launch %s : missing date_utc", id)
	}
	date, err := time.Parse(time.RFC3339, *w.DateUTC)
	if err != nil {
		return domain.Launch{}, fmt.Errorf("launch %s : parsing date_utc : %w", id, err)
	}
	if w.FlightNumber == nil {
		return domain.Launch{}, fmt.Errorf("launch %s : missing flight_number", id)
	}
	if *w.FlightNumber < 0 {
		return domain.Launch{}, fmt.Errorf("launch %s : negative flight_number %d", id, *w.FlightNumber)
	}

	record := domain.Launch{
		ID:           id,
		Name:         name,
		Success:      w.Success,
		DateUTC:      date.UTC(),
		Details:      deref(w.Details),
		FlightNumber: *w.FlightNumber,
	}
	if w.Links != nil {
		if w.Links.Patch != nil {
			record.Links.Patch.Small = deref(w.Links.Patch.Small)
			record.Links.Patch.Large = deref(w.Links.Patch.Large)
		}
		record.Links.YouTubeID = deref(w.Links.YouTubeID)
		record.Links.Article = deref(w.Links.Article)
		record.Links.Webcast = deref(w.Links.Webcast)
		record.Links.Wikipedia = deref(w.Links.Wikipedia)
	}
	return record, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

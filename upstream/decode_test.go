package upstream

import (
	"errors"
	"testing"
	"time"

	"github.com/tfkr-ae/liftoff/launches"
)

func TestDecodeLaunches(t *testing.T) {
	t.Run("should map every field of a complete record", func(t *testing.T) {
		body := []byte(`[{"id":"5eb87cd9ffd86e000604b32a","name":"FalconSat","success":false,"date_utc":"2006-03-24T22:30:00.000Z","details":"Engine failure at 33 seconds","flight_number":1,"links":{"patch":{"small":"https://images2.imgbox.com/s.png","large":"https://images2.imgbox.com/l.png"},"youtube_id":"0a_00nJ_Y88","article":"https://www.space.com/2196.html","webcast":"https://www.youtube.com/watch?v=0a_00nJ_Y88","wikipedia":"https://en.wikipedia.org/wiki/DemoSat"}}]`)

		records, err := DecodeLaunches(body)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(records) != 1 {
			t.Fatalf("\nwanted:\n1\ngot:\n%d", len(records))
		}

		got := records[0]
		if got.ID != "5eb87cd9ffd86e000604b32a" || got.Name != "FalconSat" || got.FlightNumber != 1 {
			t.Fatalf("\nwanted:\nFalconSat #1\ngot:\n%+v", got)
		}
		if got.Success == nil || *got.Success {
			t.Fatalf("\nwanted:\nsuccess false\ngot:\n%v", got.Success)
		}
		wantDate := time.Date(2006, 3, 24, 22, 30, 0, 0, time.UTC)
		if !got.DateUTC.Equal(wantDate) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", wantDate, got.DateUTC)
		}
		if got.Details != "Engine failure at 33 seconds" {
			t.Fatalf("\nwanted:\n%q\ngot:\n%q", "Engine failure at 33 seconds", got.Details)
		}
		if got.Links.Patch.Small != "https://images2.imgbox.com/s.png" || got.Links.Patch.Large != "https://images2.imgbox.com/l.png" {
			t.Fatalf("\nwanted:\npatch urls\ngot:\n%+v", got.Links.Patch)
		}
		if got.Links.YouTubeID != "0a_00nJ_Y88" || got.Links.Article == "" || got.Links.Webcast == "" || got.Links.Wikipedia == "" {
			t.Fatalf("\nwanted:\nall links\ngot:\n%+v", got.Links)
		}
	})

	t.Run("should accept null optional fields", func(t *testing.T) {
		body := []byte(`[{"id":"a","name":"Upcoming","success":null,"date_utc":"2030-01-01T00:00:00Z","details":null,"flight_number":0,"links":null}]`)

		records, err := DecodeLaunches(body)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if records[0].Success != nil {
			t.Fatalf("\nwanted:\nnil success\ngot:\n%v", *records[0].Success)
		}
		if records[0].Details != "" || records[0].Links.Patch.Small != "" {
			t.Fatalf("\nwanted:\nempty optional fields\ngot:\n%+v", records[0])
		}
	})

	t.Run("should treat a missing success like null", func(t *testing.T) {
		body := []byte(`[
			{"id":"a","name":"Trailblazer","date_utc":"2008-08-03T03:34:00.000Z","flight_number":3},
			{"id":"b","name":"CRS-30","success":null,"date_utc":"2024-03-21T20:55:00.000Z","flight_number":196},
			{"id":"c","name":"RatSat","success":true,"date_utc":"2008-09-28T23:15:00.000Z","flight_number":4}
		]`)

		records, err := DecodeLaunches(body)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if records[0].Success != nil || records[1].Success != nil {
			t.Fatalf("\nwanted:\nunknown outcomes\ngot:\n%v %v", records[0].Success, records[1].Success)
		}
		set := launches.WorkingSet(records)
		if len(set) != 1 || set[0].ID != "c" {
			t.Fatalf("\nwanted:\n[c]\ngot:\n%+v", set)
		}
	})

	t.Run("should return an empty listing for an empty array", func(t *testing.T) {
		records, err := DecodeLaunches([]byte(`[]`))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(records) != 0 {
			t.Fatalf("\nwanted:\n0\ngot:\n%d", len(records))
		}
	})

	invalid := []struct {
		name string
		body string
	}{
		{name: "missing id", body: `[{"name":"x","date_utc":"2020-01-01T00:00:00Z","flight_number":1}]`},
		{name: "empty name", body: `[{"id":"a","name":" ","date_utc":"2020-01-01T00:00:00Z","flight_number":1}]`},
		{name: "missing date", body: `[{"id":"a","name":"x","flight_number":1}]`},
		{name: "unparseable date", body: `[{"id":"a","name":"x","date_utc":"24 March 2006","flight_number":1}]`},
		{name: "missing flight number", body: `[{"id":"a","name":"x","date_utc":"2020-01-01T00:00:00Z"}]`},
		{name: "negative flight number", body: `[{"id":"a","name":"x","date_utc":"2020-01-01T00:00:00Z","flight_number":-1}]`},
		{name: "wrong field type", body: `[{"id":7,"name":"x","date_utc":"2020-01-01T00:00:00Z","flight_number":1}]`},
		{name: "null element", body: `[null]`},
	}
	for _, tt := range invalid {
		t.Run("should reject a record with "+tt.name, func(t *testing.T) {
			records, err := DecodeLaunches([]byte(tt.body))
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrInvalidRecord, err)
			}
			if records != nil {
				t.Fatalf("\nwanted:\nnil\ngot:\n%v", records)
			}
		})
	}

	t.Run("should reject a top level object", func(t *testing.T) {
		_, err := DecodeLaunches([]byte(`{"docs":[]}`))
		if err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
		if errors.Is(err, ErrInvalidRecord) {
			t.Fatalf("\nwanted:\ndecode error\ngot:\n%v", err)
		}
	})
}

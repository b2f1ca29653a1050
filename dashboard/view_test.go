package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/launches"
	"github.com/tfkr-ae/liftoff/upstream"
)

func ptr[T any](v T) *T {
	return &v
}

// testLaunches returns n records with increasing dates, every third one without a known outcome.
func testLaunches(n int) []domain.Launch {
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	records := make([]domain.Launch, 0, n)
	for i := range n {
		record := domain.Launch{
			ID:           fmt.Sprintf("launch-%02d", i),
			Name:         fmt.Sprintf("Mission %d", i),
			DateUTC:      base.AddDate(0, 0, i),
			FlightNumber: i + 1,
		}
		if i%3 != 2 {
			record.Success = ptr(i%2 == 0)
		}
		records = append(records, record)
	}
	return records
}

// eligible returns n records that all have a known outcome.
func eligible(n int) []domain.Launch {
	records := testLaunches(n * 2)
	set := make([]domain.Launch, 0, n)
	for _, record := range records {
		if record.HasOutcome() && len(set) < n {
			set = append(set, record)
		}
	}
	return set
}

func staticFetcher(records []domain.Launch, err error, calls *atomic.Int32) Fetcher {
	return FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
		if calls != nil {
			calls.Add(1)
		}
		return records, err
	})
}

func mountedView(t *testing.T, fetcher Fetcher) *View {
	t.Helper()
	view, err := NewView(uuid.New(), fetcher)
	if err != nil {
		t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
	}
	view.Mount()
	view.Wait()
	t.Cleanup(view.Unmount)
	return view
}

func TestNewView(t *testing.T) {
	t.Run("should start idle", func(t *testing.T) {
		view, err := NewView(uuid.New(), staticFetcher(nil, nil, nil))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		state := view.Snapshot()
		if state.Phase != PhaseIdle {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseIdle, state.Phase)
		}
		if state.Direction != launches.Ascending {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", launches.Ascending, state.Direction)
		}
		if state.Theme != ThemeLight {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ThemeLight, state.Theme)
		}
	})

	t.Run("should reject a nil fetcher", func(t *testing.T) {
		if _, err := NewView(uuid.New(), nil); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
	})

	t.Run("should handle nil logger safely", func(t *testing.T) {
		view, err := NewView(uuid.New(), staticFetcher(nil, nil, nil), WithLogger(nil))
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if view.Logger == nil {
			t.Fatalf("\nwanted:\nnon-nil logger\ngot:\nnil")
		}
	})
}

func TestViewMount(t *testing.T) {
	t.Run("should be loading until the fetch resolves", func(t *testing.T) {
		release := make(chan struct{})
		view, _ := NewView(uuid.New(), FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			<-release
			return eligible(4), nil
		}))
		view.Mount()
		defer view.Unmount()

		state := view.Snapshot()
		if state.Phase != PhaseLoading {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseLoading, state.Phase)
		}
		if _, err := view.Groups(); !errors.Is(err, ErrNotReady) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrNotReady, err)
		}

		close(release)
		view.Wait()
		if got := view.Snapshot().Phase; got != PhaseReady {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseReady, got)
		}
	})

	t.Run("should cap 35 eligible records at 28 in 7 rows", func(t *testing.T) {
		view := mountedView(t, staticFetcher(eligible(35), nil, nil))

		groups, err := view.Groups()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if len(groups) != 7 {
			t.Fatalf("\nwanted:\n7\ngot:\n%d", len(groups))
		}
		total := 0
		for _, group := range groups {
			if len(group) != launches.GroupSize {
				t.Fatalf("\nwanted:\n%d\ngot:\n%d", launches.GroupSize, len(group))
			}
			total += len(group)
		}
		if total != launches.WorkingSetCap {
			t.Fatalf("\nwanted:\n%d\ngot:\n%d", launches.WorkingSetCap, total)
		}
	})

	t.Run("should never show a record without an outcome", func(t *testing.T) {
		view := mountedView(t, staticFetcher(testLaunches(30), nil, nil))

		groups, err := view.Groups()
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		for _, group := range groups {
			for _, record := range group {
				if !record.HasOutcome() {
					t.Fatalf("\nwanted:\nonly records with an outcome\ngot:\n%s", record.ID)
				}
			}
		}
	})

	t.Run("should remount from ready into loading", func(t *testing.T) {
		var calls atomic.Int32
		view := mountedView(t, staticFetcher(eligible(4), nil, &calls))
		view.Mount()
		view.Wait()
		if got := calls.Load(); got != 2 {
			t.Fatalf("\nwanted:\n2\ngot:\n%d", got)
		}
		if got := view.Snapshot().Phase; got != PhaseReady {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseReady, got)
		}
	})

	t.Run("should pass the session id to the fetcher", func(t *testing.T) {
		var got uuid.UUID
		view := mountedView(t, FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			got, _ = SessionIDFromContext(ctx)
			return nil, nil
		}))
		if got != view.ID {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", view.ID, got)
		}
	})
}

type blankError struct{}

func (blankError) Error() string { return "" }

func TestViewErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "should use the fixed message for an upstream status",
			err:  fmt.Errorf("fetching : %w", &upstream.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}),
			want: StatusMessage,
		},
		{
			name: "should use the error message otherwise",
			err:  errors.New("connection refused"),
			want: "connection refused",
		},
		{
			name: "should fall back when the error has no message",
			err:  blankError{},
			want: FallbackMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := mountedView(t, staticFetcher(nil, tt.err, nil))
			state := view.Snapshot()
			if state.Phase != PhaseError {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseError, state.Phase)
			}
			if state.Message != tt.want {
				t.Fatalf("\nwanted:\n%q\ngot:\n%q", tt.want, state.Message)
			}
			if state.Groups != nil {
				t.Fatalf("\nwanted:\nno groups\ngot:\n%v", state.Groups)
			}
		})
	}
}

func TestViewRetry(t *testing.T) {
	t.Run("should re-enter loading and fetch again", func(t *testing.T) {
		var calls atomic.Int32
		fail := atomic.Bool{}
		fail.Store(true)
		release := make(chan struct{}, 1)
		view := mountedView(t, FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			calls.Add(1)
			if fail.Load() {
				return nil, &upstream.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}
			}
			<-release
			return eligible(8), nil
		}))
		if got := view.Snapshot().Phase; got != PhaseError {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseError, got)
		}

		fail.Store(false)
		if err := view.Retry(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		state := view.Snapshot()
		if state.Phase != PhaseLoading {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseLoading, state.Phase)
		}
		if state.Message != "" {
			t.Fatalf("\nwanted:\nempty message\ngot:\n%q", state.Message)
		}

		release <- struct{}{}
		view.Wait()
		if got := calls.Load(); got != 2 {
			t.Fatalf("\nwanted:\n2\ngot:\n%d", got)
		}
		if got := view.Snapshot().Phase; got != PhaseReady {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", PhaseReady, got)
		}
	})

	t.Run("should let the last fetch to resolve win", func(t *testing.T) {
		first := make(chan struct{})
		second := make(chan struct{})
		var calls atomic.Int32
		view, _ := NewView(uuid.New(), FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			if calls.Add(1) == 1 {
				<-first
				return nil, errors.New("first attempt failed")
			}
			<-second
			return eligible(4), nil
		}))
		view.Mount()
		defer view.Unmount()
		if err := view.Retry(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		close(second)
		for view.Snapshot().Phase != PhaseReady {
			time.Sleep(time.Millisecond)
		}
		close(first)
		view.Wait()

		state := view.Snapshot()
		if state.Phase != PhaseError || state.Message != "first attempt failed" {
			t.Fatalf("\nwanted:\nerror first attempt failed\ngot:\n%v %q", state.Phase, state.Message)
		}
	})

	t.Run("should refuse an unmounted view", func(t *testing.T) {
		view, _ := NewView(uuid.New(), staticFetcher(nil, nil, nil))
		if err := view.Retry(); !errors.Is(err, ErrNotMounted) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrNotMounted, err)
		}
	})
}

func TestViewSort(t *testing.T) {
	view := mountedView(t, staticFetcher(eligible(10), nil, nil))

	t.Run("should start oldest first", func(t *testing.T) {
		groups, _ := view.Groups()
		if !groups[0][0].DateUTC.Before(groups[len(groups)-1][0].DateUTC) {
			t.Fatalf("\nwanted:\nascending rows\ngot:\n%v", groups)
		}
	})

	t.Run("should reverse when sorted newest first", func(t *testing.T) {
		asc, _ := view.Groups()
		view.SetSort(launches.Descending)
		desc, _ := view.Groups()

		if got := view.Snapshot().Direction; got != launches.Descending {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", launches.Descending, got)
		}
		if desc[0][0].ID != asc[len(asc)-1][len(asc[len(asc)-1])-1].ID {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", asc[len(asc)-1][len(asc[len(asc)-1])-1].ID, desc[0][0].ID)
		}
	})

	t.Run("should reuse rows while nothing changes", func(t *testing.T) {
		first, _ := view.Groups()
		second, _ := view.Groups()
		if &first[0][0] != &second[0][0] {
			t.Fatalf("\nwanted:\ncached rows\ngot:\nrecomputed rows")
		}
	})
}

func TestViewOverlay(t *testing.T) {
	t.Run("should select the record and lock scrolling", func(t *testing.T) {
		view := mountedView(t, staticFetcher(eligible(6), nil, nil))

		if err := view.Select("launch-01"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		state := view.Snapshot()
		if !state.OverlayOpen || state.Selected == nil || state.Selected.ID != "launch-01" {
			t.Fatalf("\nwanted:\nlaunch-01 selected\ngot:\n%v %v", state.OverlayOpen, state.Selected)
		}
		if !state.ScrollLocked {
			t.Fatalf("\nwanted:\nscroll locked\ngot:\nunlocked")
		}

		view.CloseOverlay()
		state = view.Snapshot()
		if state.OverlayOpen || state.Selected != nil {
			t.Fatalf("\nwanted:\nno selection\ngot:\n%v", state.Selected)
		}
		if state.ScrollLocked {
			t.Fatalf("\nwanted:\nscroll unlocked\ngot:\nlocked")
		}
	})

	t.Run("should switch selection without a second lock", func(t *testing.T) {
		view := mountedView(t, staticFetcher(eligible(6), nil, nil))
		_ = view.Select("launch-00")
		_ = view.Select("launch-03")
		if got := view.Snapshot().Selected.ID; got != "launch-03" {
			t.Fatalf("\nwanted:\nlaunch-03\ngot:\n%s", got)
		}
		view.CloseOverlay()
		if view.Snapshot().ScrollLocked {
			t.Fatalf("\nwanted:\nscroll unlocked\ngot:\nlocked")
		}
	})

	t.Run("should reject unknown and filtered records", func(t *testing.T) {
		view := mountedView(t, staticFetcher(testLaunches(6), nil, nil))
		for _, id := range []string{"missing", "launch-02"} {
			if err := view.Select(id); !errors.Is(err, ErrUnknownLaunch) {
				t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrUnknownLaunch, err)
			}
		}
		if view.Snapshot().ScrollLocked {
			t.Fatalf("\nwanted:\nscroll unlocked\ngot:\nlocked")
		}
	})

	t.Run("should reject selection outside ready", func(t *testing.T) {
		view := mountedView(t, staticFetcher(nil, errors.New("boom"), nil))
		if err := view.Select("launch-00"); !errors.Is(err, ErrNotReady) {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ErrNotReady, err)
		}
	})

	t.Run("should release the lock when entering loading", func(t *testing.T) {
		release := make(chan struct{})
		var calls atomic.Int32
		view, _ := NewView(uuid.New(), FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			if calls.Add(1) > 1 {
				<-release
			}
			return eligible(4), nil
		}))
		view.Mount()
		view.Wait()
		defer view.Unmount()

		_ = view.Select("launch-00")
		_ = view.Retry()
		state := view.Snapshot()
		if state.Phase != PhaseLoading || state.Selected != nil || state.ScrollLocked {
			t.Fatalf("\nwanted:\nloading without selection or lock\ngot:\n%v %v %v", state.Phase, state.Selected, state.ScrollLocked)
		}
		close(release)
		view.Wait()
	})
}

func TestViewUnmount(t *testing.T) {
	t.Run("should cancel the fetch and ignore its result", func(t *testing.T) {
		release := make(chan struct{})
		var cancelled atomic.Bool
		view, _ := NewView(uuid.New(), FetcherFunc(func(ctx context.Context) ([]domain.Launch, error) {
			<-release
			cancelled.Store(ctx.Err() != nil)
			return eligible(4), nil
		}))
		view.Mount()
		view.Unmount()
		close(release)
		view.Wait()

		if !cancelled.Load() {
			t.Fatalf("\nwanted:\ncancelled context\ngot:\nlive context")
		}
		state := view.Snapshot()
		if state.Phase != PhaseIdle || state.Groups != nil {
			t.Fatalf("\nwanted:\nidle without groups\ngot:\n%v %v", state.Phase, state.Groups)
		}
	})

	t.Run("should release the scroll lock and reset the theme", func(t *testing.T) {
		view, _ := NewView(uuid.New(), staticFetcher(eligible(4), nil, nil), WithTheme(ThemeDark))
		view.Mount()
		view.Wait()
		_ = view.Select("launch-00")
		view.ToggleTheme()

		view.Unmount()
		view.Unmount()
		state := view.Snapshot()
		if state.ScrollLocked || state.Selected != nil {
			t.Fatalf("\nwanted:\nno lock or selection\ngot:\n%v %v", state.ScrollLocked, state.Selected)
		}
		if state.Theme != ThemeDark {
			t.Fatalf("\nwanted:\n%v\ngot:\n%v", ThemeDark, state.Theme)
		}
	})
}

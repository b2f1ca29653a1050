// Package dashboard holds the per-session state of the launch dashboard and renders it as HTML.
//
// A View is created for every browser session. Mounting it starts an asynchronous
// fetch of the launch listing, the page polls until the fetch resolves and then
// shows either the grouped working set or an error with a retry control.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/launches"
	"github.com/tfkr-ae/liftoff/upstream"
)

const (
	// StatusMessage is shown when the upstream answers with a non-success status
	StatusMessage = "Could not connect to SpaceX database"
	// FallbackMessage is shown when a failure carries no message of its own
	FallbackMessage = "An unexpected error occurred"
)

var (
	// ErrNotReady is returned by operations that need a loaded working set
	ErrNotReady = errors.New("dashboard is not ready")

	// ErrUnknownLaunch is returned when selecting an ID that is not in the working set
	ErrUnknownLaunch = errors.New("launch is not in the working set")

	// ErrNotMounted is returned when retrying a view that is not mounted
	ErrNotMounted = errors.New("dashboard is not mounted")
)

// Phase is the lifecycle phase of a View.
type Phase string

const (
	PhaseIdle    Phase = "idle"    // Not mounted
	PhaseLoading Phase = "loading" // Fetch in flight
	PhaseError   Phase = "error"   // Last fetch failed
	PhaseReady   Phase = "ready"   // Working set loaded
)

// Fetcher retrieves the full upstream launch listing.
type Fetcher interface {
	FetchLaunches(ctx context.Context) ([]domain.Launch, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) ([]domain.Launch, error)

func (f FetcherFunc) FetchLaunches(ctx context.Context) ([]domain.Launch, error) {
	return f(ctx)
}

// Message maps a fetch failure to the text shown to the user.
func Message(err error) string {
	if errors.Is(err, upstream.ErrStatus) {
		return StatusMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

// View is the dashboard state owned by one browser session.
// All methods are safe for concurrent use. Fetches run outside the lock and the last one to resolve wins.
type View struct {
	ID     uuid.UUID
	Logger *slog.Logger

	mu         sync.Mutex
	wg         sync.WaitGroup
	fetcher    Fetcher
	ctx        context.Context
	cancel     context.CancelFunc
	mounted    bool
	phase      Phase
	message    string
	set        []domain.Launch
	generation uint64
	dir        launches.Direction
	grouper    launches.Grouper
	selected   *domain.Launch
	scroll     *ScrollLock
	locked     bool
	theme      Theme
	initial    Theme
}

// State is a consistent copy of a View used for rendering.
type State struct {
	SessionID    uuid.UUID
	Phase        Phase
	Message      string             // Set in PhaseError
	Direction    launches.Direction // Current sort direction
	Groups       [][]domain.Launch  // Rows of the sorted working set, set in PhaseReady
	Selected     *domain.Launch     // Record shown in the overlay
	OverlayOpen  bool
	ScrollLocked bool
	Theme        Theme
}

// NewView creates an unmounted View that fetches through fetcher.
func NewView(id uuid.UUID, fetcher Fetcher, options ...func(*View) error) (*View, error) {
	if fetcher == nil {
		return nil, errors.New("dashboard view needs a fetcher")
	}
	view := &View{
		ID:      id,
		Logger:  slog.New(slog.DiscardHandler),
		fetcher: fetcher,
		phase:   PhaseIdle,
		dir:     launches.Ascending,
		theme:   ThemeLight,
		initial: ThemeLight,
	}
	for _, option := range options {
		if err := option(view); err != nil {
			return nil, err
		}
	}
	return view, nil
}

// WithTheme sets the theme the view starts with on every mount.
func WithTheme(theme Theme) func(*View) error {
	return func(view *View) error {
		view.initial = theme
		view.theme = theme
		return nil
	}
}

// WithLogger sets the view logger, a nil logger keeps the discard logger.
func WithLogger(logger *slog.Logger) func(*View) error {
	return func(view *View) error {
		if logger != nil {
			view.Logger = logger
		}
		return nil
	}
}

// Mount starts the view lifecycle and issues the first fetch.
// Mounting an already mounted view discards its working set and fetches again.
func (view *View) Mount() {
	view.mu.Lock()
	defer view.mu.Unlock()

	if view.cancel != nil {
		view.cancel()
	}
	ctx, cancel := context.WithCancel(ContextWithSessionID(context.Background(), view.ID))
	view.ctx, view.cancel = ctx, cancel
	view.mounted = true
	view.theme = view.initial
	view.set = nil
	view.grouper.Reset()
	view.startFetch()
}

// Retry re-runs the fetch sequence. Overlapping retries are allowed.
func (view *View) Retry() error {
	view.mu.Lock()
	defer view.mu.Unlock()

	if !view.mounted {
		return ErrNotMounted
	}
	view.startFetch()
	return nil
}

// Unmount cancels in-flight fetches and discards the view state. It is idempotent.
func (view *View) Unmount() {
	view.mu.Lock()
	defer view.mu.Unlock()

	if view.cancel != nil {
		view.cancel()
		view.cancel = nil
	}
	view.releaseScroll()
	view.mounted = false
	view.phase = PhaseIdle
	view.message = ""
	view.set = nil
	view.selected = nil
	view.grouper.Reset()
	view.theme = view.initial
}

// Wait blocks until every fetch started so far has resolved.
func (view *View) Wait() {
	view.wg.Wait()
}

// startFetch enters loading and runs the fetch in its own goroutine. Callers hold the lock.
func (view *View) startFetch() {
	view.phase = PhaseLoading
	view.message = ""
	view.selected = nil
	view.releaseScroll()

	ctx := view.ctx
	view.wg.Add(1)
	go view.fetch(ctx)
}

func (view *View) fetch(ctx context.Context) {
	defer view.wg.Done()

	records, err := view.fetcher.FetchLaunches(ctx)

	view.mu.Lock()
	defer view.mu.Unlock()

	if ctx.Err() != nil {
		view.Logger.Debug("discarding fetch of an unmounted view", "session_id", view.ID)
		return
	}
	if err != nil {
		view.phase = PhaseError
		view.message = Message(err)
		view.set = nil
		view.Logger.Debug("dashboard fetch failed", "session_id", view.ID, "error", err)
		return
	}

	view.set = launches.WorkingSet(records)
	view.generation++
	view.phase = PhaseReady
	view.Logger.Debug("dashboard ready", "session_id", view.ID, "records", len(view.set))
}

// SetSort changes the sort direction of the rendered rows.
func (view *View) SetSort(dir launches.Direction) {
	view.mu.Lock()
	defer view.mu.Unlock()
	view.dir = dir
}

// Groups returns the working set sorted and chunked into rows.
func (view *View) Groups() ([][]domain.Launch, error) {
	view.mu.Lock()
	defer view.mu.Unlock()

	if view.phase != PhaseReady {
		return nil, ErrNotReady
	}
	return view.groups(), nil
}

func (view *View) groups() [][]domain.Launch {
	return view.grouper.Groups(view.set, view.generation, view.dir)
}

// Select opens the overlay on the record with the given ID and suspends page scrolling.
func (view *View) Select(id string) error {
	view.mu.Lock()
	defer view.mu.Unlock()

	if view.phase != PhaseReady {
		return ErrNotReady
	}
	i := slices.IndexFunc(view.set, func(l domain.Launch) bool { return l.ID == id })
	if i < 0 {
		return ErrUnknownLaunch
	}
	record := view.set[i]
	view.selected = &record
	if view.scroll == nil {
		view.scroll = AcquireScrollLock(func() { view.locked = true }, func() { view.locked = false })
	}
	return nil
}

// CloseOverlay clears the selection and restores page scrolling.
func (view *View) CloseOverlay() {
	view.mu.Lock()
	defer view.mu.Unlock()

	view.selected = nil
	view.releaseScroll()
}

func (view *View) releaseScroll() {
	view.scroll.Release()
	view.scroll = nil
}

// Theme returns the current theme.
func (view *View) Theme() Theme {
	view.mu.Lock()
	defer view.mu.Unlock()
	return view.theme
}

// ToggleTheme switches between light and dark and returns the new theme.
func (view *View) ToggleTheme() Theme {
	view.mu.Lock()
	defer view.mu.Unlock()
	view.theme = view.theme.Toggle()
	return view.theme
}

// Snapshot returns a copy of the view state.
func (view *View) Snapshot() State {
	view.mu.Lock()
	defer view.mu.Unlock()

	state := State{
		SessionID:    view.ID,
		Phase:        view.phase,
		Message:      view.message,
		Direction:    view.dir,
		ScrollLocked: view.locked,
		Theme:        view.theme,
	}
	if view.phase == PhaseReady {
		state.Groups = view.groups()
	}
	if view.selected != nil {
		selected := *view.selected
		state.Selected = &selected
		state.OverlayOpen = true
	}
	return state
}

package dashboard

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tfkr-ae/liftoff/domain"
	"github.com/tfkr-ae/liftoff/launches"
	"github.com/tfkr-ae/liftoff/rawhttp"
)

const (
	// PatchFallback replaces a missing patch image in the overlay
	PatchFallback = "/static/patch.svg"
	// DetailsFallback replaces missing mission details in the overlay
	DetailsFallback = "No details available for this mission."
	// SkeletonCards is the number of placeholder cards shown while loading
	SkeletonCards = 8
	// RefreshSeconds is the polling interval of the loading page
	RefreshSeconds = 1
	// DateLayout formats launch dates on the cards
	DateLayout = "1/2/2006"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Renderer executes the dashboard and not-found templates.
type Renderer struct {
	dashboard *template.Template
	notFound  *template.Template
	policy    *bluemonday.Policy
	Pretty    bool // Indent the generated HTML
}

// NewRenderer parses the embedded templates.
func NewRenderer(options ...func(*Renderer) error) (*Renderer, error) {
	dashboard, err := template.ParseFS(templateFS, "templates/layout.html", "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parsing dashboard template : %w", err)
	}
	notFound, err := template.ParseFS(templateFS, "templates/layout.html", "templates/notfound.html")
	if err != nil {
		return nil, fmt.Errorf("parsing not found template : %w", err)
	}
	renderer := &Renderer{
		dashboard: dashboard,
		notFound:  notFound,
		policy:    bluemonday.StrictPolicy(),
	}
	for _, option := range options {
		if err := option(renderer); err != nil {
			return nil, fmt.Errorf("applying option on renderer : %w", err)
		}
	}
	return renderer, nil
}

// WithPrettyHTML enables indented output.
func WithPrettyHTML(pretty bool) func(*Renderer) error {
	return func(renderer *Renderer) error {
		renderer.Pretty = pretty
		return nil
	}
}

// StaticHandler serves the embedded stylesheet, it expects the /static/ prefix to be stripped.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServerFS(sub)
}

type page struct {
	Title     string
	Theme     Theme
	Toggle    string
	BodyClass string
	Refresh   int

	Loading  bool
	Failed   bool
	Ready    bool
	Message  string
	Skeleton []int
	SortAsc  bool
	Rows     [][]card
	Overlay  *overlay
}

type card struct {
	ID      string
	Name    string
	Patch   string
	Success bool
	Date    string
}

type overlay struct {
	Name         string
	Patch        string
	Details      template.HTML
	FlightNumber int
	YouTubeID    string
	Article      string
}

// RenderDashboard writes the page for a view state.
func (renderer *Renderer) RenderDashboard(w io.Writer, state State) error {
	data := page{
		Title:   "Last launches",
		Theme:   state.Theme,
		Toggle:  state.Theme.Icon(),
		Loading: state.Phase == PhaseLoading || state.Phase == PhaseIdle,
		Failed:  state.Phase == PhaseError,
		Ready:   state.Phase == PhaseReady,
		Message: state.Message,
		SortAsc: state.Direction != launches.Descending,
	}
	if data.Loading {
		data.Refresh = RefreshSeconds
		data.Skeleton = make([]int, SkeletonCards)
	}
	if state.ScrollLocked {
		data.BodyClass = "overflow-hidden"
	}
	for _, group := range state.Groups {
		row := make([]card, 0, len(group))
		for _, record := range group {
			row = append(row, card{
				ID:      record.ID,
				Name:    record.Name,
				Patch:   record.Links.Patch.Small,
				Success: record.Succeeded(),
				Date:    record.DateUTC.Format(DateLayout),
			})
		}
		data.Rows = append(data.Rows, row)
	}
	if state.OverlayOpen && state.Selected != nil {
		data.Overlay = renderer.overlay(*state.Selected)
	}
	return renderer.execute(w, renderer.dashboard, data)
}

func (renderer *Renderer) overlay(record domain.Launch) *overlay {
	o := &overlay{
		Name:         record.Name,
		Patch:        record.Links.Patch.Small,
		Details:      template.HTML(renderer.policy.Sanitize(record.Details)),
		FlightNumber: record.FlightNumber,
		YouTubeID:    record.Links.YouTubeID,
		Article:      record.Links.Article,
	}
	if o.Patch == "" {
		o.Patch = PatchFallback
	}
	if o.Details == "" {
		o.Details = DetailsFallback
	}
	return o
}

// RenderNotFound writes the not-found page.
func (renderer *Renderer) RenderNotFound(w io.Writer, theme Theme) error {
	data := page{
		Title:  "Lost mission in space",
		Theme:  theme,
		Toggle: theme.Icon(),
	}
	return renderer.execute(w, renderer.notFound, data)
}

func (renderer *Renderer) execute(w io.Writer, tmpl *template.Template, data page) error {
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("executing template : %w", err)
	}
	out := buf.Bytes()
	if renderer.Pretty {
		out = rawhttp.FormatHTML(out)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("writing page : %w", err)
	}
	return nil
}

// Package upstream fetches the launch listing from the upstream API.
//
// Every request runs through a martian modifier pipeline before it is sent and
// every response runs through it before it is decoded, mirroring how a proxy
// processes traffic. The default pipeline disables caching, negotiates
// compressed JSON, buffers and decompresses the body and records a dump of
// failed responses in the fetch metadata.
package upstream

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/martian/fifo"
	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/domain"
)

const (
	// DefaultURL is the public SpaceX launch listing
	DefaultURL = "https://api.spacexdata.com/v5/launches"
	// DefaultMaxBodySize bounds the buffered upstream body
	DefaultMaxBodySize = 10 << 20
)

// Client issues uncached GET requests for the launch listing.
type Client struct {
	URL         string       // Upstream listing URL
	HTTPClient  *http.Client // Underlying HTTP client, its Timeout is the only deadline besides the caller's context
	Modifiers   *fifo.Group  // Request / response modifier pipeline
	UserAgent   string       // Optional User-Agent sent upstream
	MaxBodySize int64        // Upper bound for the buffered body, 0 disables the bound
	Logger      *slog.Logger
}

// Attempt describes one upstream fetch. It is returned even when the fetch fails
// so that callers can audit every attempt.
type Attempt struct {
	ID         uuid.UUID       // Fetch ID generated by SetupRequestModifier, uuid.Nil if the pipeline never ran
	URL        string          // Requested URL
	StatusCode int             // 0 when no response was received
	Launches   []domain.Launch // Validated records, nil on failure
	Duration   time.Duration   // Time from the start of the fetch to the decoded result or the failure
	Metadata   map[string]any  // Metadata collected by the modifiers
}

// New creates a Client for rawURL with the default pipeline and applies the options.
func New(rawURL string, options ...func(*Client) error) (*Client, error) {
	client := &Client{
		URL:         rawURL,
		HTTPClient:  &http.Client{},
		Modifiers:   fifo.NewGroup(),
		MaxBodySize: DefaultMaxBodySize,
		Logger:      slog.New(slog.DiscardHandler),
	}

	client.AddRequestModifier(SetupRequestModifier)
	client.AddRequestModifier(NoStoreModifier)
	client.AddRequestModifier(AcceptModifier)
	client.AddRequestModifier(UserAgentModifier)

	client.AddResponseModifier(ResponseTimeModifier)
	client.AddResponseModifier(BufferBodyModifier)
	client.AddResponseModifier(CompressedResponseModifier)
	client.AddResponseModifier(DumpFailureModifier)

	for _, option := range options {
		if err := option(client); err != nil {
			return nil, fmt.Errorf("applying option on upstream client : %w", err)
		}
	}
	return client, nil
}

// AddRequestModifier accepts RequestModifierFunc and wraps it in a reqAdapter
func (client *Client) AddRequestModifier(modifier RequestModifierFunc) {
	client.Modifiers.AddRequestModifier(&reqAdapter{client: client, modifier: modifier})
}

// AddResponseModifier accepts ResponseModifierFunc and wraps it in a resAdapter
func (client *Client) AddResponseModifier(modifier ResponseModifierFunc) {
	client.Modifiers.AddResponseModifier(&resAdapter{client: client, modifier: modifier})
}

// FetchLaunches retrieves and validates the full upstream listing.
// A non-success status yields a *StatusError, any record failing validation fails the whole listing.
// The returned Attempt is never nil.
func (client *Client) FetchLaunches(ctx context.Context) (*Attempt, error) {
	start := time.Now()
	attempt := &Attempt{URL: client.URL, Metadata: map[string]any{}}
	defer func() {
		attempt.Duration = time.Since(start)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.URL, nil)
	if err != nil {
		return attempt, fmt.Errorf("creating upstream request : %w", err)
	}

	if err := client.Modifiers.ModifyRequest(req); err != nil {
		return attempt, fmt.Errorf("modifying upstream request : %w", err)
	}
	if id, ok := FetchIDFromContext(req.Context()); ok {
		attempt.ID = id
	}
	if metadata, ok := MetadataFromContext(req.Context()); ok {
		attempt.Metadata = metadata
	}

	res, err := client.HTTPClient.Do(req)
	if err != nil {
		return attempt, fmt.Errorf("requesting %s : %w", client.URL, err)
	}
	defer res.Body.Close()
	attempt.StatusCode = res.StatusCode

	if err := client.Modifiers.ModifyResponse(res); err != nil {
		return attempt, fmt.Errorf("modifying upstream response : %w", err)
	}

	if !isSuccess(res.StatusCode) {
		return attempt, &StatusError{StatusCode: res.StatusCode, Status: res.Status}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return attempt, fmt.Errorf("%w : %w", ErrReadBody, err)
	}

	detected := mimetype.Detect(body)
	attempt.Metadata["detected_type"] = detected.String()
	if !isJSON(detected) {
		return attempt, fmt.Errorf("%w : detected %s", ErrUnexpectedContent, detected.String())
	}

	records, err := DecodeLaunches(body)
	if err != nil {
		return attempt, err
	}
	attempt.Launches = records

	client.Logger.Debug("fetched launches", "url", client.URL, "records", len(records), "fetch_id", attempt.ID)
	return attempt, nil
}

func isJSON(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if m.Is("application/json") {
			return true
		}
	}
	return false
}

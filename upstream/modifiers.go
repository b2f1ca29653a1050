package upstream

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"
	"github.com/tfkr-ae/liftoff/rawhttp"
)

var (
	// ErrStatus is matched by every *StatusError, the upstream answered with a non-success status
	ErrStatus = errors.New("upstream returned a non-success status")

	// ErrReadBody is returned when the upstream body cannot be read or decompressed
	ErrReadBody = errors.New("failed to read the body")

	// ErrBodyTooLarge is returned when the upstream body exceeds Client.MaxBodySize
	ErrBodyTooLarge = errors.New("upstream body exceeds the size limit")

	// ErrUnexpectedContent is returned when the upstream body is not JSON
	ErrUnexpectedContent = errors.New("upstream body is not JSON")

	// ErrInvalidRecord is returned when a launch record fails validation
	ErrInvalidRecord = errors.New("invalid launch record")

	// ErrMetadataNotFound is returned when a modifier runs on a request that skipped SetupRequestModifier
	ErrMetadataNotFound = errors.New("invalid or missing metadata")
)

// maxDumpBody bounds the body kept in the dump of a failed exchange
const maxDumpBody = 64 << 10

// StatusError reports a non-success upstream status. It matches ErrStatus with errors.Is.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream responded with %s", e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// RequestModifierFunc is a signature for upstream request modifiers, it takes in the request and *Client
type RequestModifierFunc func(client *Client, req *http.Request) error

// ResponseModifierFunc is a signature for upstream response modifiers, it takes in the response and *Client
type ResponseModifierFunc func(client *Client, res *http.Response) error

// reqAdapter adapts the `RequestModifierFunc` and implements the `martian.RequestModifier` interface.
type reqAdapter struct {
	client   *Client
	modifier RequestModifierFunc
}

// ModifyRequest implements the `martian.RequestModifier` interface and allows the modifier to access the *Client
func (adapter *reqAdapter) ModifyRequest(req *http.Request) error {
	return adapter.modifier(adapter.client, req)
}

// resAdapter adapts the `ResponseModifierFunc` and implements the `martian.ResponseModifier` interface.
type resAdapter struct {
	client   *Client
	modifier ResponseModifierFunc
}

// ModifyResponse implements the `martian.ResponseModifier` interface and allows the modifier to access the *Client
func (adapter *resAdapter) ModifyResponse(res *http.Response) error {
	return adapter.modifier(adapter.client, res)
}

// SetupRequestModifier generates the fetch ID and stores it with a fresh metadata map and the request time in the context.
func SetupRequestModifier(client *Client, req *http.Request) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generating uuid for fetch : %w", err)
	}
	*req = *ContextWithFetchID(req, id)
	*req = *ContextWithMetadata(req, make(map[string]any))
	*req = *ContextWithRequestTime(req, time.Now())
	return nil
}

// NoStoreModifier disables caching for the upstream request.
func NoStoreModifier(client *Client, req *http.Request) error {
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	return nil
}

// AcceptModifier asks for JSON and for gzip or brotli encoded bodies.
// Setting Accept-Encoding turns off the transport's own gzip handling, CompressedResponseModifier decodes instead.
func AcceptModifier(client *Client, req *http.Request) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	return nil
}

// UserAgentModifier sets the User-Agent header when the client has one configured.
func UserAgentModifier(client *Client, req *http.Request) error {
	if client.UserAgent != "" {
		req.Header.Set("User-Agent", client.UserAgent)
	}
	return nil
}

// ResponseTimeModifier stores the response time in the request context.
func ResponseTimeModifier(client *Client, res *http.Response) error {
	res.Request = ContextWithResponseTime(res.Request, time.Now())
	return nil
}

// BufferBodyModifier reads the entire response body into memory, up to client.MaxBodySize,
// and replaces `res.Body` with a new `io.NopCloser` on the full body.
func BufferBodyModifier(client *Client, res *http.Response) error {
	defer res.Body.Close()

	body, err := readLimited(res.Body, client.MaxBodySize)
	if err != nil {
		return err
	}

	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	res.TransferEncoding = nil
	return nil
}

// CompressedResponseModifier decompresses gzip and br bodies and replaces `res.Body` with the decompressed data.
// It removes the "Content-Encoding" header and updates "Content-Length" to the new length.
func CompressedResponseModifier(client *Client, res *http.Response) error {
	if res.Body == nil || res.ContentLength <= 0 {
		return nil
	}

	encoding := res.Header.Get("Content-Encoding")
	var reader io.Reader
	switch encoding {
	case "gzip":
		gzipReader, err := gzip.NewReader(res.Body)
		if err != nil {
			return fmt.Errorf("%w : creating gzip reader : %w", ErrReadBody, err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	case "br":
		reader = brotli.NewReader(res.Body)
	default:
		return nil
	}
	defer res.Body.Close()

	body, err := readLimited(reader, client.MaxBodySize)
	if err != nil {
		return fmt.Errorf("reading %s content : %w", encoding, err)
	}

	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	res.Header.Set("Content-Length", fmt.Sprintf("%d", len(body)))
	res.Header.Del("Content-Encoding")

	if metadata, ok := MetadataFromContext(res.Request.Context()); ok {
		metadata["content_encoding"] = encoding
	}
	return nil
}

// DumpFailureModifier records a prettified dump of non-success responses in the fetch metadata
// so the failure can be inspected from the audit log.
func DumpFailureModifier(client *Client, res *http.Response) error {
	if isSuccess(res.StatusCode) {
		return nil
	}
	metadata, ok := MetadataFromContext(res.Request.Context())
	if !ok {
		return ErrMetadataNotFound
	}

	dump, err := rawhttp.DumpResponse(res, maxDumpBody)
	if err != nil {
		return fmt.Errorf("dumping failed response : %w", err)
	}
	if dump.Pretty != "" {
		metadata["prettified_response"] = dump.Pretty
	} else {
		metadata["raw_response"] = string(dump.Raw)
	}
	if dump.Truncated {
		metadata["response_truncated"] = true
	}

	requestDump, err := rawhttp.DumpRequest(res.Request, maxDumpBody)
	if err != nil {
		return fmt.Errorf("dumping failed request : %w", err)
	}
	metadata["request"] = string(requestDump.Raw)

	client.Logger.Debug("upstream returned a non-success status",
		"status", res.StatusCode,
		"url", res.Request.URL.String(),
		"dump", string(dump.Raw),
	)
	return nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w : %w", ErrReadBody, err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w : %w", ErrReadBody, err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w : more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

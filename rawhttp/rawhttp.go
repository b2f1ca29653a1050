// Package rawhttp renders HTTP messages as text for logs and audit records.
// Bodies in JSON, XML or HTML are indented so failed upstream exchanges stay readable.
package rawhttp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"

	"github.com/beevik/etree"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yosssi/gohtml"
)

// Dump is the text rendering of an HTTP message.
type Dump struct {
	Raw       []byte // Headers followed by the (possibly truncated) body as received
	Pretty    string // Headers followed by the indented body, empty when the body could not be prettified
	Truncated bool   // The body was cut to the requested limit
}

// Prettify will attempt to indent the body as JSON, then XML, then HTML.
// It returns an empty slice when none of them apply.
func Prettify(bodyBytes []byte) ([]byte, error) {
	trimmedBody := bytes.TrimSpace(bodyBytes)
	if len(trimmedBody) == 0 {
		return []byte{}, nil
	}

	if output, ok, err := prettyJSON(trimmedBody); ok || err != nil {
		return output, err
	}
	if output, ok, err := prettyXML(trimmedBody); ok || err != nil {
		return output, err
	}
	if output, ok := prettyHTML(trimmedBody); ok {
		return output, nil
	}
	return []byte{}, nil
}

func prettyJSON(body []byte) ([]byte, bool, error) {
	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err != nil {
		return nil, false, nil
	}
	output, err := json.MarshalIndent(jsonData, "", "  ")
	if err != nil {
		return []byte{}, false, fmt.Errorf("remarshalling JSON : %w", err)
	}
	return output, true, nil
}

func prettyXML(body []byte) ([]byte, bool, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil || doc.Root() == nil {
		return nil, false, nil
	}
	doc.Indent(1)
	var output bytes.Buffer
	if _, err := doc.WriteTo(&output); err != nil {
		return []byte{}, false, fmt.Errorf("writing indented XML : %w", err)
	}
	return output.Bytes(), true, nil
}

func prettyHTML(body []byte) ([]byte, bool) {
	contentType := mimetype.Detect(body).String()
	looksLikeMarkup := bytes.HasPrefix(body, []byte("<")) && !bytes.HasPrefix(body, []byte("<?xml"))
	if !strings.Contains(contentType, "text/html") && !looksLikeMarkup {
		return nil, false
	}
	output := FormatHTML(body)
	if len(output) == 0 || bytes.Equal(output, body) {
		return nil, false
	}
	return output, true
}

// FormatHTML indents an HTML document or fragment.
func FormatHTML(page []byte) []byte {
	return gohtml.FormatBytes(page)
}

// DumpResponse dumps the response headers and body and resets the body so it can be consumed again.
// When maxBody is positive only the first maxBody bytes of the body are included in the dump.
func DumpResponse(res *http.Response, maxBody int) (Dump, error) {
	headers, err := httputil.DumpResponse(res, false)
	if err != nil {
		return Dump{}, fmt.Errorf("dumping response : %w", err)
	}

	var body []byte
	if res.Body != nil {
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return Dump{}, fmt.Errorf("reading response body : %w", err)
		}
		res.Body = io.NopCloser(bytes.NewReader(body))
	}
	return newDump(headers, body, maxBody)
}

// DumpRequest dumps the request headers and body and resets the body so it can be consumed again.
// When maxBody is positive only the first maxBody bytes of the body are included in the dump.
func DumpRequest(req *http.Request, maxBody int) (Dump, error) {
	headers, err := httputil.DumpRequest(req, false)
	if err != nil {
		return Dump{}, fmt.Errorf("dumping request : %w", err)
	}

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return Dump{}, fmt.Errorf("reading request body : %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	return newDump(headers, body, maxBody)
}

func newDump(headers, body []byte, maxBody int) (Dump, error) {
	dump := Dump{}
	if maxBody > 0 && len(body) > maxBody {
		body = body[:maxBody]
		dump.Truncated = true
	}

	dump.Raw = make([]byte, 0, len(headers)+len(body))
	dump.Raw = append(dump.Raw, headers...)
	dump.Raw = append(dump.Raw, body...)

	// a truncated body is never valid JSON or XML
	if dump.Truncated {
		return dump, nil
	}
	prettified, err := Prettify(body)
	if err != nil || len(prettified) == 0 {
		return dump, nil
	}
	dump.Pretty = string(headers) + string(prettified)
	return dump, nil
}

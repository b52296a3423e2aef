// internal/origin/origin.go
//
// Origin fetcher.
//
// Context
// -------
// The origin is the static-site generator's output, served by a plain
// file host.  This client issues the upstream GET for a request path and
// returns an explicit, allow-listed view of the response: status, a
// fixed set of headers, the body, and an HTML flag.  Upstream headers
// outside the allow list are never forwarded; hop-by-hop and caching
// headers from the origin must not leak through the personalization
// layer, which sets its own.
//
// Non-2xx and non-HTML responses are returned as-is for verbatim
// pass-through; the caller decides not to inject or cache them.
//
// Notes
// -----
//   - Oxford commas, two spaces after periods.
package origin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxBodyBytes caps an origin read; pre-rendered pages are far smaller.
const maxBodyBytes = 8 << 20

// forwardedHeaders is the explicit allow list copied from origin
// responses onto pass-through replies.
var forwardedHeaders = []string{
	"Content-Type",
	"Content-Language",
	"Last-Modified",
	"Location",
}

// Response is the explicit view of one origin fetch.
type Response struct {
	Status  int
	Header  http.Header // allow-listed subset only
	Body    []byte
	IsHTML  bool
	Elapsed time.Duration
}

// OK reports whether the origin answered with a 2xx.
func (r *Response) OK() bool { return r.Status >= 200 && r.Status < 300 }

// Client fetches pages from the origin host.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client for the given base URL ("https://origin.example").
func New(base string, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch GETs path (with query) from the origin.
func (c *Client) Fetch(ctx context.Context, pathAndQuery string) (*Response, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+pathAndQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("origin request %s: %w", pathAndQuery, err)
	}
	req.Header.Set("Accept", "text/html,*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("origin fetch %s: %w", pathAndQuery, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("origin read %s: %w", pathAndQuery, err)
	}

	hdr := make(http.Header, len(forwardedHeaders))
	for _, name := range forwardedHeaders {
		if v := resp.Header.Get(name); v != "" {
			hdr.Set(name, v)
		}
	}

	ct := resp.Header.Get("Content-Type")
	return &Response{
		Status:  resp.StatusCode,
		Header:  hdr,
		Body:    body,
		IsHTML:  strings.Contains(ct, "text/html"),
		Elapsed: time.Since(start),
	}, nil
}

package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// StatusServerDown is the non-standard status some CDN edges return when the
// origin host is unreachable.
const StatusServerDown = 521

// Client wraps HTTP operations for item transfers.
//
// Client issues plain and ranged GET requests and classifies failures into
// the Kind taxonomy so the download engine can decide between backing off,
// marking a host offline, or giving up.
type Client struct {
	httpClient *http.Client
	userAgent  string
	referer    string
}

// NewClient creates a transfer client with the given per-request timeout.
// The timeout bounds the whole request including body read, which also
// bounds how long a dead connection can stall a worker.
func NewClient(timeout time.Duration, userAgent, referer string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		referer:   referer,
	}
}

// Response is one successfully opened transfer stream.
type Response struct {
	// Body is the content stream. The caller owns closing it.
	Body io.ReadCloser

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Resumed is true when the server honored the Range request and the
	// stream continues from the requested offset.
	Resumed bool

	// TotalSize is the declared size of the whole entity in bytes, or -1
	// when the server did not declare one.
	TotalSize int64
}

// FetchRange opens a GET stream for url, requesting bytes from offset onward
// when offset > 0. The caller must check Resumed: a server may ignore the
// Range header and return the full entity with a 200.
//
// Failures are returned as *Error with a Kind classification; context
// cancellation is passed through unwrapped.
func (c *Client) FetchRange(ctx context.Context, url string, offset int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, URL: url, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, &Error{Kind: KindTransport, URL: url, Err: err}
		}
		// Refused connections and DNS failures mean the host itself is
		// unreachable, not just this request.
		return nil, &Error{Kind: KindHostDown, URL: url, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return &Response{
			Body:       resp.Body,
			StatusCode: resp.StatusCode,
			Resumed:    false,
			TotalSize:  resp.ContentLength,
		}, nil

	case http.StatusPartialContent:
		return &Response{
			Body:       resp.Body,
			StatusCode: resp.StatusCode,
			Resumed:    true,
			TotalSize:  totalFromContentRange(resp.Header.Get("Content-Range"), offset, resp.ContentLength),
		}, nil

	case http.StatusTooManyRequests:
		drainAndClose(resp.Body)
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, URL: url}

	case http.StatusServiceUnavailable, StatusServerDown:
		drainAndClose(resp.Body)
		return nil, &Error{Kind: KindHostDown, StatusCode: resp.StatusCode, URL: url}

	default:
		drainAndClose(resp.Body)
		return nil, &Error{Kind: KindClient, StatusCode: resp.StatusCode, URL: url}
	}
}

// totalFromContentRange extracts the entity size from a Content-Range header
// of the form "bytes <start>-<end>/<total>". Falls back to offset plus the
// remaining Content-Length when the total is absent or "*".
func totalFromContentRange(header string, offset, contentLength int64) int64 {
	if idx := strings.LastIndex(header, "/"); idx >= 0 {
		if total, err := strconv.ParseInt(header[idx+1:], 10, 64); err == nil {
			return total
		}
	}
	if contentLength >= 0 {
		return offset + contentLength
	}
	return -1
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 4096))
	_ = body.Close()
}

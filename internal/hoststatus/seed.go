package hoststatus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// operational is the status string a healthy host reports.
const operational = "Operational"

// FetchSeed retrieves the host→status map from a status endpoint and
// converts it to a host→offline seed for NewTracker. The endpoint returns a
// JSON object mapping host names to status strings; anything other than
// "Operational" counts as offline.
//
// The fetch itself retries transient failures; a run can start with an empty
// seed, so callers should degrade rather than abort when this fails.
func FetchSeed(ctx context.Context, statusURL string) (map[string]bool, error) {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching host status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading status body: %w", err)
	}

	var statuses map[string]string
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("decoding status body: %w", err)
	}

	seed := make(map[string]bool, len(statuses))
	for host, status := range statuses {
		seed[host] = status != operational
	}
	return seed, nil
}

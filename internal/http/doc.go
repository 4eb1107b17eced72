// Package http provides the HTTP transport used for item transfers.
//
// The Client in this package handles:
//   - Ranged GET requests for resuming partial transfers
//   - User-Agent and Referer headers the hosting service expects
//   - Classification of failures into the retry taxonomy
//
// # Basic Usage
//
//	client := http.NewClient(30*time.Second, userAgent, referer)
//
//	resp, err := client.FetchRange(ctx, link, partialSize)
//	if err != nil {
//	    if http.IsKind(err, http.KindRateLimited) { /* back off and retry */ }
//	    if http.IsKind(err, http.KindHostDown)    { /* mark host offline */ }
//	}
//	defer resp.Body.Close()
//
// # Classification
//
// Every failure surfaces as an *Error carrying a Kind: transport timeouts
// and resets are retryable, 429 retries after backoff, 503/521 or a dead
// connection condemn the whole host for the run, and anything else is a
// definitive client error. Context cancellation passes through unwrapped so
// callers can distinguish an interrupt from a transfer failure.
package http

package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Verdict is the external classifier's judgement of an image payload.
type Verdict struct {
	Allowed bool    `json:"allowed"`
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
}

// Client calls the external image classifier. The core does no image-content
// analysis itself; it only forwards the payload and interprets the verdict.
type Client struct {
	http    *retryablehttp.Client
	baseURL string
}

// NewClient creates a classifier client for the given base URL. A zero
// timeout defaults to ten seconds; classification is advisory, so callers
// should not wait long on it.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return &Client{http: rc, baseURL: baseURL}
}

// Check submits payload for classification. Transport failures and non-200
// responses are returned as errors; callers decide whether to fail open.
func (c *Client) Check(ctx context.Context, payload []byte) (*Verdict, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("classifier: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier: unexpected status %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return nil, fmt.Errorf("classifier: malformed response: %w", err)
	}
	return &verdict, nil
}

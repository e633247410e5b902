package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one drone's telemetry endpoints. A zero timeout falls
// back to 5 seconds, matching the curl --max-time the harness has always
// used against these endpoints.
type Client struct {
	base string
	http *http.Client
}

const defaultTimeout = 5 * time.Second

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		base: baseURL,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.base
}

// FetchState fetches and decodes GET /state.
func (c *Client) FetchState(ctx context.Context) (*State, error) {
	body, err := c.get(ctx, "/state")
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Op: "state", Err: err}
	}
	var st State
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, &FetchError{Kind: KindParse, Op: "state", Body: string(body), Err: err}
	}
	if !st.hasAllDeltas && st.LatestByArea == nil {
		return nil, &FetchError{
			Kind: KindSchema, Op: "state", Body: string(body),
			Err: fmt.Errorf("response has neither all_deltas nor latest_readings"),
		}
	}
	return &st, nil
}

// FetchStats fetches and decodes GET /stats.
func (c *Client) FetchStats(ctx context.Context) (*Stats, error) {
	body, err := c.get(ctx, "/stats")
	if err != nil {
		return nil, &FetchError{Kind: KindNetwork, Op: "stats", Err: err}
	}
	var st Stats
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, &FetchError{Kind: KindParse, Op: "stats", Body: string(body), Err: err}
	}
	return &st, nil
}

// PushPosition posts the node's simulated location to POST /position.
func (c *Client) PushPosition(ctx context.Context, p Position) error {
	return c.post(ctx, "/position", p)
}

// Reading is a synthetic detection event injected through POST /sensor.
type Reading struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	TimestampMS int64   `json:"timestamp_ms"`
	Confidence  float64 `json:"confidence"`
}

// InjectReading feeds a synthetic detection into the node's sensor path.
func (c *Client) InjectReading(ctx context.Context, r Reading) error {
	return c.post(ctx, "/sensor", r)
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return nil
}

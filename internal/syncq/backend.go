package syncq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	pathPending = "/getAllEventsForParsing"
	pathResult  = "/fillParsingEventResult"
)

// SyncError is a failed round trip to the remote backend.
type SyncError struct {
	Op     string
	Status int // 0 when no HTTP response was received
	Err    error
}

func (e *SyncError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sync %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("sync %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Backend is the HTTP client for the remote event store. It does not retry.
type Backend struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewBackend returns a client for baseURL, e.g.
// "https://example.org/backend/integration/parsing".
func NewBackend(baseURL, token string, timeout time.Duration) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type pendingResponse struct {
	Data struct {
		Data []Item `json:"data"`
	} `json:"data"`
}

// FetchPending returns the items the backend still wants parsed.
func (b *Backend) FetchPending(ctx context.Context) ([]Item, error) {
	body, err := b.post(ctx, "fetch", pathPending, nil)
	if err != nil {
		return nil, err
	}
	var resp pendingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &SyncError{Op: "fetch", Err: fmt.Errorf("decode response: %w", err)}
	}
	return resp.Data.Data, nil
}

type resultRequest struct {
	ID     string `json:"id"`
	Result any    `json:"result"`
}

// PostResult reports the outcome for one item and returns the backend's
// response body, also when the status is an error. Any 2xx status counts as
// success.
func (b *Backend) PostResult(ctx context.Context, id string, result any) (json.RawMessage, error) {
	body, err := b.post(ctx, "report", pathResult, resultRequest{ID: id, Result: result})
	return asJSON(body), err
}

func (b *Backend) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &SyncError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, reqBody)
	if err != nil {
		return nil, &SyncError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &SyncError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &SyncError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &SyncError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}
	return body, nil
}

// asJSON keeps valid JSON as-is and wraps anything else as a JSON string so
// the audit log stays decodable.
func asJSON(body []byte) json.RawMessage {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	b, _ := json.Marshal(string(body))
	return b
}

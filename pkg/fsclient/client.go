// Package fsclient provides an HTTP client for the form submission service.
//
// Every call issues exactly one request. Authenticated calls carry the API key
// in the x-api-key header. Failures are reported as *TransportError (service
// unreachable), *StatusError (non-2xx) or *DecodeError (unparseable body);
// a failed call never returns partial data.
package fsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// APIKeyHeader carries the API key on authenticated requests.
const APIKeyHeader = "x-api-key"

// Observer is notified after every request. code is 0 when no response was received.
type Observer func(op string, code int, elapsed time.Duration, err error)

// Client talks to one submission service endpoint with one API key.
// It is safe for concurrent use.
type Client struct {
	baseURL  string
	apiKey   string
	http     *http.Client
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

// WithObserver installs a per-request callback, used for logging and metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client for baseURL. A trailing slash on baseURL is ignored.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the service endpoint this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ------------------------------------------------------------------
// Low-level protocol
// ------------------------------------------------------------------

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any, authed bool) ([]byte, error) {
	start := time.Now()
	data, code, err := c.roundTrip(ctx, op, method, path, query, body, authed)
	if c.observer != nil {
		c.observer(op, code, time.Since(start), err)
	}
	return data, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body any, authed bool) ([]byte, int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("fsclient: %s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set(APIKeyHeader, c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode, &StatusError{Op: op, StatusCode: resp.StatusCode, Message: serverMessage(data)}
	}
	return data, resp.StatusCode, nil
}

func (c *Client) decode(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	data, err := c.do(ctx, op, method, path, query, body, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// serverMessage extracts "message" from an error body. The service sends either
// a string or a list of validation messages.
func serverMessage(body []byte) string {
	var env struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Message) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(env.Message, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(env.Message, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func submissionPath(id string, suffix string) string {
	return "/submission/" + url.PathEscape(id) + suffix
}

// ------------------------------------------------------------------
// Health
// ------------------------------------------------------------------

// Health fetches the unauthenticated service health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	data, err := c.do(ctx, "health", http.MethodGet, "/health", nil, nil, false)
	if err != nil {
		return nil, err
	}
	var h Health
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, &DecodeError{Op: "health", Err: err}
	}
	return &h, nil
}

// CheckCreds verifies the client's API key. A nil error means the key was accepted.
func (c *Client) CheckCreds(ctx context.Context) error {
	_, err := c.do(ctx, "check_creds", http.MethodGet, "/health/checkCreds", nil, nil, true)
	return err
}

// ------------------------------------------------------------------
// Submissions
// ------------------------------------------------------------------

// ListSubmissions fetches one page. An empty search term is not sent.
func (c *Client) ListSubmissions(ctx context.Context, p ListParams) (*ListResponse, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(p.Page))
	q.Set("limit", strconv.Itoa(p.Limit))
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	var out ListResponse
	if err := c.decode(ctx, "list_submissions", http.MethodGet, "/submissions", q, nil, &out); err != nil {
		return nil, err
	}
	if out.Data == nil {
		out.Data = []Submission{}
	}
	return &out, nil
}

// Stats fetches aggregate per-status counts. Accepts a bare object or one
// wrapped in {"data": ...}.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	data, err := c.do(ctx, "stats", http.MethodGet, "/submissions/stats", nil, nil, true)
	if err != nil {
		return nil, err
	}
	var env struct {
		Data *Stats `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DecodeError{Op: "stats", Err: err}
	}
	if env.Data != nil {
		return env.Data, nil
	}
	var s Stats
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &DecodeError{Op: "stats", Err: err}
	}
	return &s, nil
}

// GetSubmission fetches one submission by id.
func (c *Client) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var out Submission
	if err := c.decode(ctx, "get_submission", http.MethodGet, submissionPath(id, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus fetches only the status of a submission.
func (c *Client) GetStatus(ctx context.Context, id string) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.decode(ctx, "get_status", http.MethodGet, submissionPath(id, "/status"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateStatus requests a status transition and returns the service's view of the submission.
func (c *Client) UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (*Submission, error) {
	if !req.Status.Valid() {
		return nil, fmt.Errorf("fsclient: update_status: invalid status %q", req.Status)
	}
	var out Submission
	if err := c.decode(ctx, "update_status", http.MethodPatch, submissionPath(id, "/status"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Retry asks the service to re-run a submission.
func (c *Client) Retry(ctx context.Context, id string) (*Submission, error) {
	var out Submission
	if err := c.decode(ctx, "retry", http.MethodGet, submissionPath(id, "/retry"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSubmission submits a new takedown request.
func (c *Client) CreateSubmission(ctx context.Context, req CreateSubmissionRequest) (*Submission, error) {
	var out Submission
	if err := c.decode(ctx, "create_submission", http.MethodPost, "/submit", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package cluster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

// DefaultTimeout bounds a single request/response exchange with a shard.
const DefaultTimeout = 2 * time.Second

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

var (
	// ErrNotFound is matched by errors returned for a 404 response.
	ErrNotFound = errors.New("not found")

	// ErrMalformedResponse is returned when a 2xx body lacks a usable result.
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL     string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %s: %d: %s", e.URL, e.Code, e.Message)
	}
	return fmt.Sprintf("http %s: %d", e.URL, e.Code)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// TransportError means the exchange itself failed: the peer was unreachable,
// the connection broke, or the per-call timeout fired. It is always safe to retry.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the exchange was abandoned because it took too long.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// Retryable is always true for transport failures.
func (e *TransportError) Retryable() bool { return true }

// Client performs JSON exchanges with a per-call timeout.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient returns a Client whose every call is bounded by timeout.
// A non-positive timeout selects DefaultTimeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Timeout returns the per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// GetJSON issues a GET and decodes the envelope's result into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}

	var env Response
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode >= 300 {
		se := &StatusError{URL: url, Code: resp.StatusCode}
		if decodeErr == nil {
			se.Message = env.Error
		}
		return se
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: %w: %v", url, ErrMalformedResponse, decodeErr)
	}
	if len(env.Result) == 0 || bytes.Equal(env.Result, []byte("null")) {
		return fmt.Errorf("%s: %w: missing result", url, ErrMalformedResponse)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%s: %w: %v", url, ErrMalformedResponse, err)
	}
	return nil
}

// Shard returns a client bound to one shard.
func (c *Client) Shard(t ShardTarget) *ShardClient {
	return &ShardClient{Target: t, base: BaseURL(t.Addr), client: c}
}

// ShardClient speaks the shard query protocol over HTTP.
type ShardClient struct {
	Target ShardTarget
	base   string
	client *Client
}

// RangeSummary fetches GET /range.
func (s *ShardClient) RangeSummary(ctx context.Context) (RangeSummary, error) {
	var w rangeSummaryWire
	if err := s.client.GetJSON(ctx, s.base+"/range", &w); err != nil {
		return RangeSummary{}, err
	}
	rs, err := w.summary()
	if err != nil {
		return RangeSummary{}, err
	}
	if err := rs.Validate(); err != nil {
		return RangeSummary{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return rs, nil
}

// LookupByIndex fetches GET /query?index=i.
func (s *ShardClient) LookupByIndex(ctx context.Context, index int64) (Interval, error) {
	var w intervalWire
	u := s.base + "/query?index=" + strconv.FormatInt(index, 10)
	if err := s.client.GetJSON(ctx, u, &w); err != nil {
		return Interval{}, err
	}
	iv, err := w.interval()
	if err != nil {
		return Interval{}, err
	}
	if err := iv.Validate(); err != nil {
		return Interval{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return iv, nil
}

// intervalWire is an Interval as decoded off the wire. A field the shard
// left out stays nil instead of silently reading as zero.
type intervalWire struct {
	Index    *int64 `json:"index"`
	Start    *int64 `json:"start"`
	End      *int64 `json:"end"`
	Duration *int64 `json:"duration"`
}

func (w intervalWire) interval() (Interval, error) {
	if err := requireFields(map[string]bool{
		"index": w.Index != nil,
		"start": w.Start != nil,
		"end":   w.End != nil,
	}); err != nil {
		return Interval{}, err
	}
	iv := Interval{Index: *w.Index, Start: *w.Start, End: *w.End, Duration: *w.End - *w.Start}
	if w.Duration != nil && *w.Duration != iv.Duration {
		return Interval{}, fmt.Errorf("%w: interval %d: duration %d, want %d", ErrMalformedResponse, iv.Index, *w.Duration, iv.Duration)
	}
	return iv, nil
}

// rangeSummaryWire is a RangeSummary as decoded off the wire.
type rangeSummaryWire struct {
	ShardID *int   `json:"shardId"`
	Start   *int64 `json:"start"`
	End     *int64 `json:"end"`
	Length  *int64 `json:"length"`
	Offset  *int64 `json:"offset"`
}

func (w rangeSummaryWire) summary() (RangeSummary, error) {
	if err := requireFields(map[string]bool{
		"shardId": w.ShardID != nil,
		"start":   w.Start != nil,
		"end":     w.End != nil,
		"length":  w.Length != nil,
		"offset":  w.Offset != nil,
	}); err != nil {
		return RangeSummary{}, err
	}
	return RangeSummary{ShardID: *w.ShardID, Start: *w.Start, End: *w.End, Length: *w.Length, Offset: *w.Offset}, nil
}

// requireFields fails with ErrMalformedResponse naming every absent field.
func requireFields(present map[string]bool) error {
	var missing []string
	for name, ok := range present {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: missing %s", ErrMalformedResponse, strings.Join(missing, ", "))
}

// Health probes GET /health; any 2xx counts as healthy.
func (s *ShardClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	u := s.base + "/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return &TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return &StatusError{URL: u, Code: resp.StatusCode}
	}
	return nil
}

// BaseURL normalizes "host:port" and full URLs into a scheme-qualified base
// without a trailing slash.
func BaseURL(addr string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/")
}

// ParseTarget parses the "id=addr" form used on the command line.
func ParseTarget(s string) (ShardTarget, error) {
	id, addr, ok := strings.Cut(s, "=")
	if !ok || addr == "" {
		return ShardTarget{}, fmt.Errorf("shard %q: want id=addr", s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil || n < 0 {
		return ShardTarget{}, fmt.Errorf("shard %q: invalid id", s)
	}
	addr = strings.TrimSpace(addr)
	if _, err := url.Parse(BaseURL(addr)); err != nil {
		return ShardTarget{}, fmt.Errorf("shard %q: %w", s, err)
	}
	return ShardTarget{ID: n, Addr: addr}, nil
}

// Package sheets talks to the spreadsheet backend that stores truck entries.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"truck_notify_bot/internal/domain"
	"truck_notify_bot/internal/logging"
)

const (
	actionTruckStatus = "getTruckStatus"
	actionRowDetails  = "getRowDetails"

	defaultTimeout = 30 * time.Second
	excerptLimit   = 300
	maxBodyBytes   = 1 << 20
)

var (
	// ErrUnexpectedResponse means the backend answered with something other than JSON.
	ErrUnexpectedResponse = errors.New("unexpected response from spreadsheet backend")
	// ErrBackend means the backend answered with success=false.
	ErrBackend = errors.New("spreadsheet backend rejected the request")
)

// UnexpectedResponseError carries the content type and the start of a non-JSON body.
type UnexpectedResponseError struct {
	ContentType string
	Excerpt     string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("%s (content-type %q)", ErrUnexpectedResponse.Error(), e.ContentType)
}

func (e *UnexpectedResponseError) Unwrap() error { return ErrUnexpectedResponse }

// BackendError holds the message returned alongside success=false.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if strings.TrimSpace(e.Message) == "" {
		return ErrBackend.Error()
	}
	return ErrBackend.Error() + ": " + e.Message
}

func (e *BackendError) Unwrap() error { return ErrBackend }

// SubmitResult is the backend answer to a new entry.
type SubmitResult struct {
	Message string
	RowLink string
}

// LookupResult is the backend answer to a status or row query.
type LookupResult struct {
	Message string
	Rows    []Row
}

// Field is one column of a returned row.
type Field struct {
	Key   string
	Value string
}

// Row keeps the columns in the order the backend sent them.
type Row []Field

// Get returns the value for key and whether it exists.
func (r Row) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Find returns the first value whose key contains substr, case-insensitively.
func (r Row) Find(substr string) string {
	substr = strings.ToLower(substr)
	for _, f := range r {
		if strings.Contains(strings.ToLower(f.Key), substr) {
			return f.Value
		}
	}
	return ""
}

// Number returns the ROW_NUMBER column.
func (r Row) Number() string {
	v, _ := r.Get("ROW_NUMBER")
	return v
}

// UnmarshalJSON decodes a JSON object while preserving key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("row must be a JSON object")
	}

	var row Row
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		row = append(row, Field{Key: key, Value: scalarString(raw)})
	}

	*r = row
	return nil
}

func scalarString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	if string(trimmed) == "false" {
		return ""
	}
	return string(trimmed)
}

type submitRequest struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	RowLink string `json:"rowLink"`
	Data    []Row  `json:"data"`
}

// Client calls the spreadsheet backend.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logrus.Entry
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLimiter replaces the default rate limiter; nil disables throttling.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New constructs a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("backend url must be absolute")
	}

	c := &Client{
		baseURL: parsed.String(),
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		logger:  logging.Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Submit writes a new entry to the sheet named by entry.Target.
func (c *Client) Submit(ctx context.Context, entry domain.SheetEntry) (SubmitResult, error) {
	if err := c.ready(ctx); err != nil {
		return SubmitResult{}, err
	}

	body, err := json.Marshal(submitRequest{Action: entry.Action(), Data: entry.Payload()})
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	env, err := c.do(req, entry.Action())
	if err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{Message: env.Message, RowLink: env.RowLink}, nil
}

// TruckStatus looks up rows matching a truck registration.
func (c *Client) TruckStatus(ctx context.Context, query string, sheet domain.TargetSheet) (LookupResult, error) {
	return c.lookup(ctx, actionTruckStatus, query, sheet)
}

// RowDetails fetches one row by number.
func (c *Client) RowDetails(ctx context.Context, row string, sheet domain.TargetSheet) (LookupResult, error) {
	return c.lookup(ctx, actionRowDetails, row, sheet)
}

func (c *Client) lookup(ctx context.Context, action, query string, sheet domain.TargetSheet) (LookupResult, error) {
	if err := c.ready(ctx); err != nil {
		return LookupResult{}, err
	}
	if strings.TrimSpace(query) == "" {
		return LookupResult{}, errors.New("query is required")
	}
	if sheet == "" {
		sheet = domain.SheetTransit
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return LookupResult{}, fmt.Errorf("parse backend url: %w", err)
	}
	params := u.Query()
	params.Set("action", action)
	params.Set("query", strings.TrimSpace(query))
	params.Set("sheet", string(sheet))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return LookupResult{}, fmt.Errorf("build request: %w", err)
	}

	env, err := c.do(req, action)
	if err != nil {
		return LookupResult{}, err
	}

	return LookupResult{Message: env.Message, Rows: env.Data}, nil
}

func (c *Client) do(req *http.Request, action string) (envelope, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return envelope{}, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%s request: %w", action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return envelope{}, fmt.Errorf("read %s response: %w", action, err)
	}

	c.logger.WithFields(logging.Fields{
		"event":       "sheets_call",
		"action":      action,
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("spreadsheet backend responded")

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		excerpt := string(raw)
		if len(excerpt) > excerptLimit {
			excerpt = excerpt[:excerptLimit]
		}
		return envelope{}, &UnexpectedResponseError{ContentType: contentType, Excerpt: excerpt}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return envelope{}, fmt.Errorf("decode %s response: %w", action, err)
	}
	if !env.Success {
		return envelope{}, &BackendError{Message: env.Message}
	}

	return env, nil
}

func (c *Client) ready(ctx context.Context) error {
	if c == nil || c.http == nil {
		return errors.New("sheets client is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

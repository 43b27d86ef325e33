// Package api is the client for the work-order REST API.
//
// Reads (ListOrders, ListArchives) return an error when the API cannot be
// reached or answers with anything but 200; callers treat that as a failed
// precondition. Writes never return an error: every write produces a Result
// whose Outcome says whether the API accepted it, rejected it, or could not
// be reached. Nothing is retried.
package api

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/MikeWKI/WKI-WIP/internal/models"
)

// ErrUnexpectedStatus wraps every non-success HTTP status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Outcome classifies one remote call.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRejected  Outcome = "rejected"
	OutcomeTransport Outcome = "transport"
	// OutcomeSkipped means no call was made for the record.
	OutcomeSkipped Outcome = "skipped"
)

// Result is what one write call produced.
type Result struct {
	Outcome    Outcome
	StatusCode int
	Body       []byte
	Err        error
}

func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess
}

// Tag is the short label printed in report rows.
func (r Result) Tag() string {
	switch r.Outcome {
	case OutcomeSuccess:
		return fmt.Sprintf("OK %d", r.StatusCode)
	case OutcomeRejected:
		if r.StatusCode == 0 {
			return "FAIL"
		}
		return fmt.Sprintf("FAIL %d", r.StatusCode)
	case OutcomeSkipped:
		return "SKIPPED"
	default:
		return "ERROR"
	}
}

// Default timeouts per call class.
const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadTimeout  = 30 * time.Second
	DefaultBulkTimeout  = 120 * time.Second
	DefaultDelay        = 100 * time.Millisecond
)

type Options struct {
	BaseURL      string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	BulkTimeout  time.Duration
	// Delay is the fixed pause between writes.
	Delay      time.Duration
	RunID      string
	Logger     *zap.Logger
	HTTPClient *http.Client
}

type Client struct {
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
	writeTimeout time.Duration
	readTimeout  time.Duration
	bulkTimeout  time.Duration
	runID        string
	logger       *zap.Logger
}

func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		httpClient:   opts.HTTPClient,
		writeTimeout: opts.WriteTimeout,
		readTimeout:  opts.ReadTimeout,
		bulkTimeout:  opts.BulkTimeout,
		runID:        opts.RunID,
		logger:       opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.writeTimeout <= 0 {
		c.writeTimeout = DefaultWriteTimeout
	}
	if c.readTimeout <= 0 {
		c.readTimeout = DefaultReadTimeout
	}
	if c.bulkTimeout <= 0 {
		c.bulkTimeout = DefaultBulkTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	c.limiter = rate.NewLimiter(limit, 1)
	return c
}

// BaseURL is the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListOrders fetches every active order.
func (c *Client) ListOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if err := c.get(ctx, "/orders", &orders); err != nil {
		return nil, fmt.Errorf("failed to fetch orders: %w", err)
	}
	return orders, nil
}

// ListArchives fetches archived orders keyed by archive month.
func (c *Client) ListArchives(ctx context.Context) (map[string][]models.Order, error) {
	byMonth := make(map[string][]models.Order)
	if err := c.get(ctx, "/archives", &byMonth); err != nil {
		return nil, fmt.Errorf("failed to fetch archives: %w", err)
	}
	return byMonth, nil
}

// CreateOrder posts a new active order. On success the created order, with
// its id, is returned.
func (c *Client) CreateOrder(ctx context.Context, order models.Order) (models.Order, Result) {
	res := c.send(ctx, http.MethodPost, "/orders", order, c.writeTimeout, http.StatusOK, http.StatusCreated)
	var created models.Order
	if res.OK() && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &created); err != nil {
			c.logger.Warn("create response was not an order", zap.String("ro", order.RO), zap.Error(err))
		}
	}
	return created, res
}

// DeleteOrder removes one active order.
func (c *Client) DeleteOrder(ctx context.Context, id string) Result {
	return c.send(ctx, http.MethodDelete, "/orders/"+url.PathEscape(id), nil, c.writeTimeout,
		http.StatusOK, http.StatusNoContent)
}

// ArchiveOrder moves one active order into the given month bucket.
func (c *Client) ArchiveOrder(ctx context.Context, id, month string) Result {
	body := map[string]string{"archiveMonth": month}
	return c.send(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/archive", body, c.writeTimeout,
		http.StatusOK, http.StatusCreated)
}

// BulkArchive writes many orders straight into the archive collection. The
// server's own counts are returned as-is.
func (c *Client) BulkArchive(ctx context.Context, orders []models.Order) (models.BulkArchiveResult, Result) {
	body := map[string][]models.Order{"orders": orders}
	res := c.send(ctx, http.MethodPost, "/archives/bulk", body, c.bulkTimeout, http.StatusOK, http.StatusCreated)

	summary := models.BulkArchiveResult{Archived: len(orders)}
	if res.OK() && len(res.Body) > 0 {
		if err := json.Unmarshal(res.Body, &summary); err != nil {
			c.logger.Warn("bulk archive response not understood", zap.Error(err))
		}
	}
	return summary, res
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any, timeout time.Duration, ok ...int) Result {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{Outcome: OutcomeTransport, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return Result{Outcome: OutcomeTransport, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return Result{Outcome: OutcomeTransport, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Outcome: OutcomeTransport, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Debug("request done",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	for _, code := range ok {
		if resp.StatusCode == code {
			return Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode, Body: payload}
		}
	}
	return Result{
		Outcome:    OutcomeRejected,
		StatusCode: resp.StatusCode,
		Body:       payload,
		Err:        fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.runID != "" {
		req.Header.Set("X-Request-ID", c.runID)
	}
	return req, nil
}

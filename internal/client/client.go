package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fx-trade-journal/internal/config"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Interface is the set of journal operations available over HTTP.
type Interface interface {
	Health(ctx context.Context) error
	ListTrades(ctx context.Context, sel journal.Selection) ([]models.Trade, error)
	GetTrade(ctx context.Context, id int64) (*models.Trade, error)
	AddTrade(ctx context.Context, e journal.Entry) (*models.Trade, error)
	UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) (*models.Trade, error)
	DeleteTrade(ctx context.Context, id int64) error
	Stats(ctx context.Context, sel journal.Selection) (*journal.Report, error)
	ExportCSV(ctx context.Context, sel journal.Selection, w io.Writer) error
	Status(ctx context.Context) (*Status, error)
}

// Client talks to a journal server.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

var _ Interface = (*Client)(nil)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.Status, e.Message)
}

// Unwrap lets errors.Is(err, journal.ErrValidation) hold for rejected input.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusBadRequest {
		return journal.ErrValidation
	}
	return nil
}

// Status mirrors the server's /api/status body.
type Status struct {
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	Uptime     string `json:"uptime"`
	Timezone   string `json:"timezone"`
	TradeCount int64  `json:"trade_count"`
}

type envelope[T any] struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    T              `json:"data"`
	Meta    map[string]any `json:"meta"`
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient creates a journal API client.
func NewClient(cfg *config.Client, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if cfg.TimeoutSeconds > 0 {
		client.SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second)
	}

	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		client:  client,
		logger:  logger.Named("journal-client"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

// doRequest waits for the rate limiter and executes req once. Writes are not
// idempotent, so nothing is retried.
func (c *Client) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
	resp, err := req.SetContext(ctx).SetError(&errorBody{}).Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if body, ok := resp.Error().(*errorBody); ok && body.Message != "" {
			msg = body.Message
		}
		return nil, &APIError{Status: resp.StatusCode(), Message: msg}
	}
	return resp, nil
}

// selectionParams encodes sel. A nil list is left out so the server selects
// everything; an empty one is sent empty so it selects nothing.
func selectionParams(req *resty.Request, sel journal.Selection) *resty.Request {
	if sel.Pairs != nil {
		req.SetQueryParam("pairs", strings.Join(sel.Pairs, ","))
	}
	if sel.Types != nil {
		req.SetQueryParam("types", strings.Join(sel.Types, ","))
	}
	if sel.Since != "" {
		req.SetQueryParam("since", sel.Since)
	}
	return req
}

func tradePath(id int64) string {
	return "/api/trades/" + strconv.FormatInt(id, 10)
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.doRequest(ctx, http.MethodGet, "/healthz", c.client.R()); err != nil {
		return fmt.Errorf("failed to reach journal server: %w", err)
	}
	return nil
}

// ListTrades returns the selected trades in id order.
func (c *Client) ListTrades(ctx context.Context, sel journal.Selection) ([]models.Trade, error) {
	var out envelope[[]models.Trade]
	req := selectionParams(c.client.R().SetResult(&out), sel)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/trades", req); err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	if out.Data == nil {
		out.Data = []models.Trade{}
	}
	return out.Data, nil
}

// GetTrade returns nil, nil when the trade does not exist.
func (c *Client) GetTrade(ctx context.Context, id int64) (*models.Trade, error) {
	var out envelope[*models.Trade]
	req := c.client.R().SetResult(&out)

	_, err := c.doRequest(ctx, http.MethodGet, tradePath(id), req)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}
	return out.Data, nil
}

// AddTrade records e and returns the stored trade.
func (c *Client) AddTrade(ctx context.Context, e journal.Entry) (*models.Trade, error) {
	var out envelope[*models.Trade]
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(e).
		SetResult(&out)

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/trades", req); err != nil {
		c.logger.Error("Failed to add trade", zap.Error(err), zap.String("pair", e.Pair))
		return nil, fmt.Errorf("failed to add trade: %w", err)
	}
	return out.Data, nil
}

// UpdateResult sets or clears result and pips. The returned trade is nil
// when id does not exist.
func (c *Client) UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) (*models.Trade, error) {
	var out envelope[*models.Trade]
	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"result": result, "pips": pips}).
		SetResult(&out)

	if _, err := c.doRequest(ctx, http.MethodPut, tradePath(id)+"/result", req); err != nil {
		return nil, fmt.Errorf("failed to update trade %d: %w", id, err)
	}
	return out.Data, nil
}

// DeleteTrade removes a trade. Deleting a missing trade is not an error.
func (c *Client) DeleteTrade(ctx context.Context, id int64) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, tradePath(id), c.client.R()); err != nil {
		return fmt.Errorf("failed to delete trade %d: %w", id, err)
	}
	return nil
}

// Stats returns the report over the selected trades.
func (c *Client) Stats(ctx context.Context, sel journal.Selection) (*journal.Report, error) {
	var out envelope[journal.Report]
	req := selectionParams(c.client.R().SetResult(&out), sel)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/stats", req); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &out.Data, nil
}

// ExportCSV copies the server's CSV export of the selected trades to w.
func (c *Client) ExportCSV(ctx context.Context, sel journal.Selection, w io.Writer) error {
	req := selectionParams(c.client.R().SetHeader("Accept", "text/csv"), sel)

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/trades/export", req)
	if err != nil {
		return fmt.Errorf("failed to export trades: %w", err)
	}
	if _, err := w.Write(resp.Body()); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// Status returns the server's status.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var out envelope[Status]
	req := c.client.R().SetResult(&out)

	if _, err := c.doRequest(ctx, http.MethodGet, "/api/status", req); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &out.Data, nil
}

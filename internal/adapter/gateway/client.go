// Package gateway is the HTTP client for the payment gateway's REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	domainGateway "library-fines/internal/domain/gateway"
)

var _ domainGateway.Client = (*Client)(nil)

const (
	DefaultBaseURL = "https://api.razorpay.com"
	DefaultTimeout = 30 * time.Second
	maxErrorBody   = 4 << 10
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	// RPS limits outgoing calls; zero disables the limiter.
	RPS   float64
	Burst int
}

type Client struct {
	base    *url.URL
	keyID   string
	secret  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("gateway base url: %w", err)
	}
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway key id and secret are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		base:   base,
		keyID:  cfg.KeyID,
		secret: cfg.KeySecret,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "gateway")),
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c, nil
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type paymentList struct {
	Count int                     `json:"count"`
	Items []domainGateway.Payment `json:"items"`
}

func (c *Client) CreateOrder(ctx context.Context, req domainGateway.OrderRequest) (*domainGateway.Order, error) {
	var out domainGateway.Order
	if err := c.do(ctx, http.MethodPost, "/v1/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchOrderPayments(ctx context.Context, orderID string) ([]domainGateway.Payment, error) {
	var out paymentList
	if err := c.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*domainGateway.Payment, error) {
	var out domainGateway.Payment
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Capture(ctx context.Context, paymentID string, amountMinor int64, currency string) (*domainGateway.Payment, error) {
	body := map[string]any{"amount": amountMinor, "currency": currency}
	var out domainGateway.Payment
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/capture", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Refund(ctx context.Context, paymentID string, amountMinor int64) (*domainGateway.Refund, error) {
	body := map[string]any{}
	if amountMinor > 0 {
		body["amount"] = amountMinor
	}
	var out domainGateway.Refund
	if err := c.do(ctx, http.MethodPost, "/v1/payments/"+url.PathEscape(paymentID)+"/refund", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FetchRefund(ctx context.Context, paymentID, refundID string) (*domainGateway.Refund, error) {
	var out domainGateway.Refund
	path := "/v1/payments/" + url.PathEscape(paymentID) + "/refunds/" + url.PathEscape(refundID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request. Transport failures, timeouts and 5xx map to
// ErrUnavailable, 404 to ErrNotFound and any other 4xx to ErrRejected.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", domainGateway.ErrUnavailable, err)
		}
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("gateway call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", domainGateway.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("gateway call",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("took", time.Since(start)))

	if resp.StatusCode >= 300 {
		return c.statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domainGateway.ErrUnavailable, err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ae apiError
	desc := http.StatusText(resp.StatusCode)
	if json.Unmarshal(raw, &ae) == nil && ae.Error.Description != "" {
		desc = ae.Error.Description
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domainGateway.ErrNotFound
	case resp.StatusCode >= 500:
		c.logger.Warn("gateway server error", zap.Int("status", resp.StatusCode), zap.String("description", desc))
		return fmt.Errorf("%w: status %d", domainGateway.ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: rate limited", domainGateway.ErrUnavailable)
	default:
		return fmt.Errorf("%w: %s", domainGateway.ErrRejected, desc)
	}
}

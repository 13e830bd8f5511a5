// Package cryptopay is a thin client for the Crypto Pay API. Only the data
// it returns (invoice id, amount, status) matters to the rest of the system.
package cryptopay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"vds-shop-bot/internal/cache"
	"vds-shop-bot/internal/metrics"
)

const (
	defaultBaseURL  = "https://pay.crypt.bot/api"
	defaultTimeout  = 20 * time.Second
	ratesCacheKey   = "cryptopay:exchange_rates"
	ratesCacheTTL   = 5 * time.Minute
	tokenHeaderName = "Crypto-Pay-API-Token"
)

// ErrUnavailable indicates the provider could not serve the request; pricing
// callers degrade to the static fallback rate.
var ErrUnavailable = errors.New("cryptopay unavailable")

// minInvoiceAmount floors settlement amounts so an invoice never rounds to
// zero value.
var minInvoiceAmount = decimal.RequireFromString("0.01")

// Client provides typed access to the Crypto Pay API.
type Client struct {
	logger       *slog.Logger
	baseURL      string
	token        string
	http         *http.Client
	metrics      *metrics.Metrics
	cache        *cache.Redis
	fallbackRate float64
}

// Config holds Crypto Pay client configuration.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// FallbackRate is RUB per USDT, applied when the live rate lookup fails.
	FallbackRate float64
}

// New creates a Crypto Pay client.
func New(cfg Config, logger *slog.Logger, m *metrics.Metrics, redis *cache.Redis) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		logger:       logger.With("component", "cryptopay"),
		baseURL:      base,
		token:        cfg.Token,
		http:         &http.Client{Timeout: timeout},
		metrics:      m,
		cache:        redis,
		fallbackRate: cfg.FallbackRate,
	}
}

// Invoice is the subset of the provider's invoice object the bot uses.
type Invoice struct {
	InvoiceID int64  `json:"invoice_id"`
	Status    string `json:"status"`
	PayURL    string `json:"pay_url"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

// ExchangeRate is one entry of the provider's rate table.
type ExchangeRate struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Rate   string `json:"rate"`
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// CreateInvoice asks the provider for a new invoice in the given asset.
func (c *Client) CreateInvoice(ctx context.Context, asset string, amount decimal.Decimal, description string, payload map[string]any) (*Invoice, error) {
	body := map[string]any{
		"asset":       asset,
		"amount":      amount.StringFixed(2),
		"description": description,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal invoice payload: %w", err)
		}
		body["payload"] = string(raw)
	}

	var invoice Invoice
	if err := c.call(ctx, http.MethodPost, "createInvoice", body, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetInvoice fetches a single invoice by id, or nil when the provider does
// not know it.
func (c *Client) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	var result struct {
		Items []Invoice `json:"items"`
	}
	path := "getInvoices?invoice_ids=" + strconv.FormatInt(invoiceID, 10)
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	return &result.Items[0], nil
}

// GetExchangeRates returns the provider rate table, served from the redis
// cache when fresh.
func (c *Client) GetExchangeRates(ctx context.Context) ([]ExchangeRate, error) {
	var rates []ExchangeRate
	if c.cache != nil {
		if ok, err := c.cache.GetJSON(ctx, ratesCacheKey, &rates); err == nil && ok {
			return rates, nil
		}
	}
	if err := c.call(ctx, http.MethodGet, "getExchangeRates", nil, &rates); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, ratesCacheKey, rates, ratesCacheTTL); err != nil {
			c.logger.Warn("failed caching exchange rates", "error", err)
		}
	}
	return rates, nil
}

// RubToUSDT converts a RUB amount to the USDT settlement amount, rounded to
// 2 decimal places and floored at 0.01. A failed live lookup degrades to the
// static fallback rate.
func (c *Client) RubToUSDT(ctx context.Context, amountRUB int64) decimal.Decimal {
	rub := decimal.NewFromInt(amountRUB)

	if rate, err := c.liveRubUSDTRate(ctx); err == nil {
		return clampAmount(rub.Mul(rate))
	} else {
		c.logger.Warn("live exchange rate unavailable, using fallback", "error", err)
		c.metrics.Errors.WithLabelValues("cryptopay_rates").Inc()
	}

	if c.fallbackRate <= 0 {
		return minInvoiceAmount
	}
	fallback := decimal.NewFromFloat(c.fallbackRate)
	return clampAmount(rub.Div(fallback))
}

// liveRubUSDTRate finds the RUB->USDT multiplier in the rate table, trying
// the inverse pair when the direct one is absent.
func (c *Client) liveRubUSDTRate(ctx context.Context) (decimal.Decimal, error) {
	rates, err := c.GetExchangeRates(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	for _, r := range rates {
		if strings.EqualFold(r.Source, "RUB") && strings.EqualFold(r.Target, "USDT") {
			return decimal.NewFromString(r.Rate)
		}
	}
	for _, r := range rates {
		if strings.EqualFold(r.Source, "USDT") && strings.EqualFold(r.Target, "RUB") {
			inv, err := decimal.NewFromString(r.Rate)
			if err != nil || inv.IsZero() {
				continue
			}
			return decimal.NewFromInt(1).DivRound(inv, 12), nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: RUB/USDT rate not in table", ErrUnavailable)
}

func clampAmount(amount decimal.Decimal) decimal.Decimal {
	rounded := amount.Round(2)
	if rounded.LessThan(minInvoiceAmount) {
		return minInvoiceAmount
	}
	return rounded
}

func (c *Client) call(ctx context.Context, method, path string, body any, dest any) error {
	endpoint := path
	if idx := strings.IndexByte(endpoint, '?'); idx >= 0 {
		endpoint = endpoint[:idx]
	}
	requestID := uuid.NewString()
	started := time.Now()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(tokenHeaderName, c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	status := "error"
	if err != nil {
		c.observe(endpoint, status, started)
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(endpoint, status, started)
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.observe(endpoint, status, started)
		c.logger.Error("cryptopay request failed",
			"endpoint", endpoint, "status_code", resp.StatusCode, "request_id", requestID)
		return fmt.Errorf("%w: %s returned %d", ErrUnavailable, endpoint, resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.observe(endpoint, status, started)
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.OK {
		c.observe(endpoint, status, started)
		return fmt.Errorf("%w: %s rejected the request", ErrUnavailable, endpoint)
	}

	status = "ok"
	c.observe(endpoint, status, started)
	if dest != nil {
		if err := json.Unmarshal(env.Result, dest); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func (c *Client) observe(endpoint, status string, started time.Time) {
	c.metrics.CryptoPayRequests.WithLabelValues(endpoint, status).Inc()
	c.metrics.CryptoPayLatency.WithLabelValues(endpoint, status).Observe(time.Since(started).Seconds())
}

package alpaca

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pair-trade-tracker-go/internal/config"
)

const baseURL = "https://data.alpaca.markets"

// ErrPriceUnavailable is returned when the feed has no latest trade for the
// requested symbol. Callers render holdings without a live value in that case.
var ErrPriceUnavailable = errors.New("price unavailable")

// PriceFeed supplies the latest traded price for a symbol. It is consumed only
// by the live-valuation display; performance metrics use stored prices.
type PriceFeed interface {
	GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// RestClient is a client for the Alpaca Data API.
// It implements the PriceFeed interface.
type RestClient struct {
	client    *resty.Client
	keyID     string
	secretKey string
	logger    *zap.Logger
	limiter   *rate.Limiter
}

// ensure RestClient implements the interface
var _ PriceFeed = (*RestClient)(nil)

// NewRestClient creates a new Alpaca Data API client.
func NewRestClient(cfg *config.Alpaca, logger *zap.Logger) *RestClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("APCA-API-KEY-ID", cfg.KeyID).
		SetHeader("APCA-API-SECRET-KEY", cfg.SecretKey)

	// rate.Limit is requests per second.
	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &RestClient{
		client:    client,
		keyID:     cfg.KeyID,
		secretKey: cfg.SecretKey,
		logger:    logger,
		limiter:   limiter,
	}
}

// Configured reports whether API credentials are present. Without them every
// price request would be rejected, so callers skip live valuation entirely.
func (c *RestClient) Configured() bool {
	return c.keyID != "" && c.secretKey != ""
}

// stockTradeResponse is the /v2/stocks/{symbol}/trades/latest shape.
type stockTradeResponse struct {
	Trade struct {
		Price json.Number `json:"p"`
	} `json:"trade"`
}

// cryptoTradeResponse is the /v1beta3/crypto/us/trades/latest shape, keyed by
// the slash-form symbol ("BTC/USD").
type cryptoTradeResponse struct {
	Trades map[string]struct {
		Price json.Number `json:"p"`
	} `json:"trades"`
}

// GetLatestPrice fetches the latest trade price for a stock or crypto symbol.
// Crypto symbols carry a "-USD" suffix ("BTC-USD") and are routed to the
// crypto endpoint with the slash form Alpaca expects.
func (c *RestClient) GetLatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("symbol is required")
	}

	if strings.Contains(symbol, "-USD") {
		return c.latestCryptoPrice(ctx, symbol)
	}
	return c.latestStockPrice(ctx, symbol)
}

func (c *RestClient) latestStockPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	req := c.client.R().SetContext(ctx).SetResult(&stockTradeResponse{})
	resp, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/v2/stocks/%s/trades/latest", symbol), req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest price for %s: %w", symbol, err)
	}
	result := resp.Result().(*stockTradeResponse)
	return parsePrice(result.Trade.Price)
}

func (c *RestClient) latestCryptoPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	cryptoSymbol := strings.Replace(symbol, "-", "/", 1)
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", cryptoSymbol).
		SetResult(&cryptoTradeResponse{})
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1beta3/crypto/us/trades/latest", req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest price for %s: %w", symbol, err)
	}
	result := resp.Result().(*cryptoTradeResponse)
	trade, ok := result.Trades[cryptoSymbol]
	if !ok {
		return decimal.Zero, ErrPriceUnavailable
	}
	return parsePrice(trade.Price)
}

func parsePrice(raw json.Number) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, ErrPriceUnavailable
	}
	price, err := decimal.NewFromString(raw.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparseable price %q: %w", raw, err)
	}
	return price, nil
}

// doRequest handles the actual request execution with rate limiting and retry logic.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}

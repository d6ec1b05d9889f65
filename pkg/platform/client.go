package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Client is an HTTP client for one source on the market data gateway.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	source     string
	timeout    time.Duration

	capMu        sync.Mutex
	capabilities Capabilities
	probePending bool
}

// NewClient creates a client bound to one source and resolves the source's
// capability set from the gateway. If the capability probe fails the client
// falls back to funding+OHLCV, which every supported source exposes.
func NewClient(serviceURL string, timeoutSeconds int, source string) *Client {
	timeout := time.Duration(timeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		BaseURL: strings.TrimSuffix(serviceURL, "/"),
		source:  strings.ToLower(source),
		timeout: timeout,
	}

	if err := c.probeCapabilities(); err != nil {
		log.Printf("Capability probe for %s failed, assuming funding+ohlcv: %v", source, err)
		c.capabilities = Capabilities{SupportsFunding: true, SupportsOHLCV: true}
		c.probePending = true
	}
	return c
}

// Source returns the source id this client is bound to.
func (c *Client) Source() string {
	return c.source
}

// Capabilities returns the capability set resolved from the gateway. A
// probe that failed at construction is retried here, so a gateway outage
// at boot does not pin the source to the fallback set until restart.
func (c *Client) Capabilities() Capabilities {
	c.capMu.Lock()
	defer c.capMu.Unlock()
	if c.probePending {
		if err := c.probeCapabilities(); err != nil {
			log.Printf("Capability re-probe for %s failed, keeping funding+ohlcv fallback: %v", c.source, err)
		}
	}
	return c.capabilities
}

func (c *Client) probeCapabilities() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var response capabilitiesResponse
	if err := c.makeRequest(ctx, "GET", "/api/capabilities/"+c.source, nil, &response); err != nil {
		return err
	}
	c.capabilities = response.Capabilities
	c.probePending = false
	return nil
}

// GetAssets returns the current asset universe of the source.
func (c *Client) GetAssets(ctx context.Context) ([]AssetDescriptor, error) {
	var response assetsResponse
	err := c.makeRequest(ctx, "GET", "/api/assets/"+c.source, nil, &response)
	if err != nil {
		return nil, err
	}
	return response.Assets, nil
}

// GetFundingRates retrieves funding rate history for one symbol.
func (c *Client) GetFundingRates(ctx context.Context, symbol string, since *time.Time, limit int) ([]FundingRateRecord, error) {
	path := c.seriesPath("funding-rates", symbol, "", since, limit)
	var response fundingRatesResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// GetOHLCV retrieves candles for one symbol at the given interval.
func (c *Client) GetOHLCV(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]CandleRecord, error) {
	path := c.seriesPath("ohlcv", symbol, interval, since, limit)
	var response candlesResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// GetOpenInterest retrieves open interest history for one symbol.
func (c *Client) GetOpenInterest(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]OpenInterestRecord, error) {
	path := c.seriesPath("open-interest", symbol, interval, since, limit)
	var response openInterestResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// GetOpenInterestSnapshot retrieves the current open interest value for
// one symbol on snapshot-only sources.
func (c *Client) GetOpenInterestSnapshot(ctx context.Context, symbol string) (*OpenInterestRecord, error) {
	path := fmt.Sprintf("/api/open-interest/%s/%s/snapshot", c.source, url.PathEscape(symbol))
	var response openInterestResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	if len(response.Records) == 0 {
		return nil, fmt.Errorf("no open interest snapshot for %s:%s", c.source, symbol)
	}
	return &response.Records[0], nil
}

// GetLongShortRatio retrieves long/short account ratio history for one symbol.
func (c *Client) GetLongShortRatio(ctx context.Context, symbol, interval string, since *time.Time, limit int) ([]LongShortRatioRecord, error) {
	path := c.seriesPath("long-short-ratio", symbol, interval, since, limit)
	var response longShortRatioResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

// GetLiquidations retrieves liquidation history for one symbol.
func (c *Client) GetLiquidations(ctx context.Context, symbol string, since *time.Time, limit int) ([]LiquidationRecord, error) {
	path := c.seriesPath("liquidations", symbol, "", since, limit)
	var response liquidationsResponse
	if err := c.makeRequest(ctx, "GET", path, nil, &response); err != nil {
		return nil, err
	}
	return response.Records, nil
}

func (c *Client) seriesPath(series, symbol, interval string, since *time.Time, limit int) string {
	path := fmt.Sprintf("/api/%s/%s/%s", series, c.source, url.PathEscape(symbol))

	params := url.Values{}
	if interval != "" {
		params.Set("interval", interval)
	}
	if since != nil {
		params.Set("since", strconv.FormatInt(since.UnixMilli(), 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	return path
}

func (c *Client) makeRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	url := c.BaseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "CoinLens-Go/1.0")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("Error closing response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err == nil && errorResp.Error != "" {
			return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, errorResp.Error)
		}
		return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

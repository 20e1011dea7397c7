// Package maker is the HTTP client for market makers serving firm quotes.
package maker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/swaprouter/internal/domain"
)

// ErrMalformedResponse is returned when a maker answers 2xx with a body that
// is not a quote object.
var ErrMalformedResponse = errors.New("malformed maker response")

// maxBodyBytes bounds how much of a maker response is read.
const maxBodyBytes = 1 << 20

// QuoteParams are the query parameters of a firm-quote request. Exactly one
// of BuyAmount and SellAmount is set.
type QuoteParams struct {
	SellToken    string
	BuyToken     string
	BuyAmount    string
	SellAmount   string
	TakerAddress string
	APIKey       string
}

func (p QuoteParams) values() url.Values {
	v := url.Values{}
	v.Set("sellToken", p.SellToken)
	v.Set("buyToken", p.BuyToken)
	if p.BuyAmount != "" {
		v.Set("buyAmount", p.BuyAmount)
	}
	if p.SellAmount != "" {
		v.Set("sellAmount", p.SellAmount)
	}
	v.Set("takerAddress", p.TakerAddress)
	return v
}

// Client requests firm quotes from market-maker endpoints. Timeouts come
// from the caller's context; the http.Client carries only a backstop.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a maker client. A nil httpClient gets a default one.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{httpClient: httpClient}
}

// FirmQuote fetches one firm quote from endpoint.
func (c *Client) FirmQuote(ctx context.Context, endpoint string, p QuoteParams) (APIFirmQuote, error) {
	u := strings.TrimRight(endpoint, "/") + "/quote?" + p.values().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return APIFirmQuote{}, fmt.Errorf("maker/client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("0x-api-key", p.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return APIFirmQuote{}, fmt.Errorf("maker/client: get quote: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return APIFirmQuote{}, fmt.Errorf("maker/client: read body: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return APIFirmQuote{}, fmt.Errorf("maker/client: get quote: %w", err)
	}

	var q APIFirmQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return APIFirmQuote{}, fmt.Errorf("maker/client: %w: %v", ErrMalformedResponse, err)
	}
	return q, nil
}

// HTTPStatusError is a non-2xx maker response not mapped to a domain error.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// checkHTTPStatus maps non-2xx responses to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return &HTTPStatusError{StatusCode: statusCode, Body: bodyStr}
	}
}

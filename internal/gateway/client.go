// Package gateway fetches authoritative transaction records from the payment
// gateway's REST API.
package gateway

import (
	"context"       // Context for timeouts and cancellation
	"encoding/json" // Response decoding
	"fmt"           // Error wrapping
	"io"            // Body reading
	"net/http"      // HTTP client
	"net/url"       // Path escaping
	"strings"       // Base URL trimming
	"time"          // Request timeout

	"travel_marketplace/internal/domain" // Domain models and errors
)

// Client calls the gateway's payment detail endpoint
type Client struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	http        *http.Client
}

// NewClient creates a gateway client; timeout bounds each detail fetch
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		timeout:     timeout,
		http:        &http.Client{},
	}
}

// PaymentDetail fetches the confirmed record for a transaction id. Any
// transport error, timeout or non-2xx answer is wrapped in ErrTransient so the
// notification is retried.
func (c *Client) PaymentDetail(ctx context.Context, transactionID string) (*domain.PaymentDetail, error) {
	if c.accessToken == "" {
		return nil, fmt.Errorf("%w: gateway access token is not configured", domain.ErrTransient)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + "/v1/payments/" + url.PathEscape(transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken) // Gateway API credential
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch payment %s: %v", domain.ErrTransient, transactionID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read payment %s: %v", domain.ErrTransient, transactionID, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch payment %s: status %d", domain.ErrTransient, transactionID, resp.StatusCode)
	}

	var raw struct {
		ID                json.RawMessage        `json:"id"` // number or string
		Status            string                 `json:"status"`
		ExternalReference string                 `json:"external_reference"`
		Metadata          domain.PaymentMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode payment %s: %v", domain.ErrTransient, transactionID, err)
	}
	return &domain.PaymentDetail{
		ID:                strings.Trim(string(raw.ID), `"`), // Numeric or quoted id
		Status:            raw.Status,
		ExternalReference: raw.ExternalReference,
		Metadata:          raw.Metadata,
	}, nil
}

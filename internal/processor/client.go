package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 20 * time.Second

// Error is a non-2xx response from the processor.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("processor: %s (%s, http %d)", e.Message, e.Code, e.StatusCode)
}

// Client is an HTTP client for the payment processor's REST API. Construct it once at
// process start and inject it everywhere a processor call is made.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a Client bound to baseURL, authenticating with apiKey.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// EnsureCustomer resolves-or-creates the processor customer for a buyer. The processor
// upserts on external_id, so repeated calls for the same buyer return the same customer.
func (c *Client) EnsureCustomer(ctx context.Context, externalID string) (*Customer, error) {
	body := map[string]string{"external_id": externalID}
	var cust Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers", "", body, &cust); err != nil {
		return nil, err
	}
	return &cust, nil
}

// CreateHold requests an authorization-only hold (capture deferred), confirmed
// synchronously.
func (c *Client) CreateHold(ctx context.Context, params HoldParams) (*Hold, error) {
	payload := struct {
		HoldParams
		CaptureMethod string `json:"capture_method"`
		Confirm       bool   `json:"confirm"`
	}{
		HoldParams:    params,
		CaptureMethod: "manual",
		Confirm:       true,
	}
	var hold Hold
	if err := c.do(ctx, http.MethodPost, "/v1/holds", params.IdempotencyKey, payload, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

// CaptureHold converts a hold into a funds transfer.
func (c *Client) CaptureHold(ctx context.Context, holdID, idempotencyKey string) (*Hold, error) {
	var hold Hold
	path := fmt.Sprintf("/v1/holds/%s/capture", holdID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, nil, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

// CancelHold releases a hold without transferring funds.
func (c *Client) CancelHold(ctx context.Context, holdID, idempotencyKey string) (*Hold, error) {
	var hold Hold
	path := fmt.Sprintf("/v1/holds/%s/cancel", holdID)
	if err := c.do(ctx, http.MethodPost, path, idempotencyKey, nil, &hold); err != nil {
		return nil, err
	}
	return &hold, nil
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &Error{StatusCode: resp.StatusCode}
		if jerr := json.Unmarshal(respBody, perr); jerr != nil || perr.Message == "" {
			perr.Message = string(respBody)
		}
		return perr
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

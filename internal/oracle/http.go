package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oracle API error (%d): %s", e.Status, e.Body)
}

// HTTPCoordinator submits requests to a remote VRF gateway. The gateway
// answers later on the callback URL, authenticated with CallbackToken.
type HTTPCoordinator struct {
	host          string
	apiKey        string
	callbackURL   string
	params        RequestParams
	httpClient    *http.Client
	callbackToken func() (string, error)
}

type HTTPOptions struct {
	BaseURL     string
	APIKey      string
	CallbackURL string
	Timeout     time.Duration
	// CallbackToken mints the bearer token the gateway presents on callback.
	CallbackToken func() (string, error)
}

func NewHTTPCoordinator(params RequestParams, opts HTTPOptions, httpClient *http.Client) (*HTTPCoordinator, error) {
	host := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if host == "" {
		return nil, fmt.Errorf("oracle.http.base_url is required")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &HTTPCoordinator{
		host:          host,
		apiKey:        strings.TrimSpace(opts.APIKey),
		callbackURL:   strings.TrimSpace(opts.CallbackURL),
		params:        params,
		httpClient:    httpClient,
		callbackToken: opts.CallbackToken,
	}, nil
}

type submitRequest struct {
	RequestParams
	CallbackURL   string `json:"callback_url,omitempty"`
	CallbackToken string `json:"callback_token,omitempty"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
}

func (c *HTTPCoordinator) SubmitRequest(ctx context.Context) (string, error) {
	payload := submitRequest{RequestParams: c.params, CallbackURL: c.callbackURL}
	payload.NumWords = uint32(c.params.words())
	if c.callbackToken != nil {
		tok, err := c.callbackToken()
		if err != nil {
			return "", fmt.Errorf("mint callback token: %w", err)
		}
		payload.CallbackToken = tok
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/v1/requests", payload)
	if err != nil {
		return "", err
	}
	var out submitResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	out.RequestID = strings.TrimSpace(out.RequestID)
	if out.RequestID == "" {
		return "", fmt.Errorf("oracle response missing request_id")
	}
	return out.RequestID, nil
}

func (c *HTTPCoordinator) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

package tripay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ticket-pay/internal/gateway"
	"ticket-pay/internal/status"
	"ticket-pay/monitoring"
	"ticket-pay/utils"
)

type Config struct {
	BaseURL      string `json:"baseUrl" mapstructure:"base_url"`
	MerchantCode string `json:"merchantCode" mapstructure:"merchant_code"`
	APIKey       string `json:"apiKey" mapstructure:"api_key"`
	PrivateKey   string `json:"privateKey" mapstructure:"private_key"`
}

// Client talks to the Tripay-compatible gateway API. Calls run through a
// circuit breaker so a dead provider fails fast instead of tying up request
// goroutines on the 10s timeout.
type Client struct {
	// baseURL is the base url of the gateway backend.
	baseURL string

	// apiKey authenticates API calls.
	apiKey string

	signer *gateway.Signer
	cb     *utils.CircuitBreaker

	// hc is the http client.
	hc *http.Client
}

func New(cfg *Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		signer: &gateway.Signer{
			MerchantCode: cfg.MerchantCode,
			PrivateKey:   cfg.PrivateKey,
		},
		cb: utils.NewCircuitBreaker("tripay"),

		// set http client with timeout.
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Signer exposes the shared signing credentials for callback verification.
func (c *Client) Signer() *gateway.Signer {
	return c.signer
}

func (c *Client) CreateTransaction(ctx context.Context, req *gateway.CreateRequest) (*gateway.Transaction, error) {
	start := time.Now()
	result, err := c.cb.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, "/transaction/create", req)
	})
	monitoring.TrackGatewayRequest("create", time.Since(start), err)
	if err != nil {
		return nil, gatewayError("create", err)
	}
	return result.(*gateway.Transaction), nil
}

func (c *Client) CancelTransaction(ctx context.Context, reference string) (*gateway.Transaction, error) {
	start := time.Now()
	result, err := c.cb.Execute(ctx, func() (interface{}, error) {
		return c.post(ctx, "/transaction/cancel", map[string]string{"reference": reference})
	})
	monitoring.TrackGatewayRequest("cancel", time.Since(start), err)
	if err != nil {
		return nil, gatewayError("cancel", err)
	}
	return result.(*gateway.Transaction), nil
}

func (c *Client) post(ctx context.Context, path string, payload any) (*gateway.Transaction, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tripay: json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tripay: http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tripay: http.Do: %w", err)
	}
	defer resp.Body.Close()

	var reply struct {
		Success bool                `json:"success"`
		Message string              `json:"message"`
		Data    gateway.Transaction `json:"data"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&reply); err != nil {
		return nil, fmt.Errorf("tripay: json.Decode: %w", err)
	}
	if resp.StatusCode != http.StatusOK || !reply.Success {
		return nil, fmt.Errorf("tripay: status %d: %s", resp.StatusCode, reply.Message)
	}

	return &reply.Data, nil
}

func gatewayError(op string, err error) *status.GatewayError {
	return &status.GatewayError{Op: op, Detail: err.Error(), Err: err}
}

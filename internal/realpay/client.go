// Package realpay talks to the RealPay disbursement gateway.
package realpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-hospitality/internal/config"

	"github.com/shopspring/decimal"
)

const disbursementsPath = "/v1/disbursements"

var (
	// ErrDeclined means RealPay answered but refused the payout.
	ErrDeclined = errors.New("disbursement declined by gateway")
	// ErrUnavailable means RealPay could not be reached or answered garbage.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

// BankAccount is the payout beneficiary.
type BankAccount struct {
	AccountHolder string `json:"account_holder"`
	BankName      string `json:"bank_name"`
	AccountNumber string `json:"account_number"`
	BranchCode    string `json:"branch_code"`
	AccountType   string `json:"account_type"`
}

// Request is one payout.
type Request struct {
	MerchantReference string          `json:"merchant_reference"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Beneficiary       BankAccount     `json:"beneficiary"`
	Description       string          `json:"description,omitempty"`
}

// Response is RealPay's synchronous answer.
type Response struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// Client pushes funds to a bank account.
type Client interface {
	Disburse(ctx context.Context, req Request) (*Response, error)
}

// New returns the mock client in mock mode, otherwise the HTTP client.
func New(cfg config.RealPayConfig) Client {
	if cfg.MockMode {
		return NewMockClient()
	}
	return NewHTTPClient(cfg)
}

// HTTPClient calls the RealPay REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	merchantID string
	client     *http.Client
}

func NewHTTPClient(cfg config.RealPayConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		merchantID: cfg.MerchantID,
		client:     &http.Client{Timeout: timeout},
	}
}

type disburseBody struct {
	MerchantID string `json:"merchant_id"`
	Request
}

type errorBody struct {
	Message string `json:"message"`
	Error   struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Disburse sends one payout. A refusal comes back as ErrDeclined with the
// gateway's message; network and decoding problems as ErrUnavailable.
func (c *HTTPClient) Disburse(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(disburseBody{MerchantID: c.merchantID, Request: req})
	if err != nil {
		return nil, fmt.Errorf("marshal disbursement: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+disbursementsPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build disbursement request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Merchant-ID", c.merchantID)
	httpReq.Header.Set("Idempotency-Key", req.MerchantReference)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, gatewayMessage(respBody))
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s", ErrDeclined, gatewayMessage(respBody))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = "no reason given"
		}
		return &out, fmt.Errorf("%w: %s", ErrDeclined, msg)
	}
	return &out, nil
}

func gatewayMessage(body []byte) string {
	var e errorBody
	if json.Unmarshal(body, &e) == nil {
		if e.Error.Message != "" {
			return e.Error.Message
		}
		if e.Message != "" {
			return e.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return msg
}

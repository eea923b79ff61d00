package realpay

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient stands in for RealPay in development and tests.
// Accounts ending in 0000 are declined; everything else succeeds.
type MockClient struct {
	mu       sync.Mutex
	requests []Request
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Disburse(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if strings.HasSuffix(req.Beneficiary.AccountNumber, "0000") {
		resp := &Response{Success: false, Status: "declined", Message: "beneficiary account rejected"}
		return resp, fmt.Errorf("%w: %s", ErrDeclined, resp.Message)
	}
	return &Response{
		Success:       true,
		TransactionID: "RP-MOCK-" + req.MerchantReference,
		Status:        "processing",
	}, nil
}

// Requests returns every payout the mock has seen.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

package realpay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-hospitality/internal/config"
	"go-hospitality/internal/realpay"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payout(account string) realpay.Request {
	return realpay.Request{
		MerchantReference: "DISB-20261015-abc",
		Amount:            decimal.RequireFromString("961.00"),
		Currency:          "ZAR",
		Beneficiary: realpay.BankAccount{
			AccountHolder: "Harbour View (Pty) Ltd",
			BankName:      "First National",
			AccountNumber: account,
			BranchCode:    "250655",
			AccountType:   "cheque",
		},
	}
}

func newClient(url string) *realpay.HTTPClient {
	return realpay.NewHTTPClient(config.RealPayConfig{
		BaseURL:    url + "/",
		APIKey:     "rp_test_key",
		MerchantID: "M-1001",
		Timeout:    time.Second,
	})
}

func TestHTTPClient_Success(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/disbursements", r.URL.Path)
		assert.Equal(t, "Bearer rp_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "M-1001", r.Header.Get("X-Merchant-ID"))
		assert.Equal(t, "DISB-20261015-abc", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"transaction_id":"RP-778812","status":"processing"}`))
	}))
	defer srv.Close()

	resp, err := newClient(srv.URL).Disburse(context.Background(), payout("62812345678"))
	require.NoError(t, err)
	assert.Equal(t, "RP-778812", resp.TransactionID)

	assert.Equal(t, "M-1001", got["merchant_id"])
	assert.Equal(t, "961", got["amount"])
	assert.Equal(t, "DISB-20261015-abc", got["merchant_reference"])
	beneficiary, ok := got["beneficiary"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "62812345678", beneficiary["account_number"])
}

func TestHTTPClient_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		msg    string
	}{
		{"declined in body", http.StatusOK, `{"success":false,"message":"insufficient float"}`, realpay.ErrDeclined, "insufficient float"},
		{"client error", http.StatusUnprocessableEntity, `{"error":{"message":"invalid branch code"}}`, realpay.ErrDeclined, "invalid branch code"},
		{"server error", http.StatusBadGateway, `upstream down`, realpay.ErrUnavailable, "upstream down"},
		{"garbage", http.StatusOK, `<html>`, realpay.ErrUnavailable, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newClient(srv.URL).Disburse(context.Background(), payout("62812345678"))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(url).Disburse(context.Background(), payout("62812345678"))
	assert.ErrorIs(t, err, realpay.ErrUnavailable)
}

func TestMockClient(t *testing.T) {
	m := realpay.NewMockClient()

	resp, err := m.Disburse(context.Background(), payout("62812345678"))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "RP-MOCK-DISB-20261015-abc", resp.TransactionID)

	_, err = m.Disburse(context.Background(), payout("4000000000"))
	assert.ErrorIs(t, err, realpay.ErrDeclined)

	assert.Len(t, m.Requests(), 2)
}

func TestNew_PicksMockInMockMode(t *testing.T) {
	_, ok := realpay.New(config.RealPayConfig{MockMode: true}).(*realpay.MockClient)
	assert.True(t, ok)

	_, ok = realpay.New(config.RealPayConfig{BaseURL: "https://example.test"}).(*realpay.HTTPClient)
	assert.True(t, ok)
}

package realpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-RealPay-Signature"

// Webhook statuses RealPay reports for a payout.
const (
	EventCompleted = "completed"
	EventFailed    = "failed"
)

var ErrBadSignature = errors.New("invalid webhook signature")

// Event is a payout status notification.
type Event struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
}

// Sign returns the signature RealPay sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent checks the signature and decodes the body.
func ParseEvent(secret string, body []byte, signature string) (*Event, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret not configured", ErrBadSignature)
	}
	given, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
	if err != nil || len(given) == 0 {
		return nil, ErrBadSignature
	}
	want, _ := hex.DecodeString(Sign(secret, body))
	if !hmac.Equal(given, want) {
		return nil, ErrBadSignature
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode webhook: %w", err)
	}
	if ev.TransactionID == "" {
		return nil, errors.New("webhook has no transaction_id")
	}
	switch ev.Status {
	case EventCompleted, EventFailed:
	default:
		return nil, fmt.Errorf("unknown webhook status %q", ev.Status)
	}
	return &ev, nil
}

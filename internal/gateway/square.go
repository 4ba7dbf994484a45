// Package gateway wraps the Square payments API behind a small charge
// interface. The adapter owns idempotency-key handling and translates
// gateway outcomes into the three cases checkout cares about: approved,
// declined, and unavailable.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUnavailable covers network failures, timeouts and 5xx responses.
// It is distinct from a decline: the charge may or may not have gone
// through, and the caller must retry with the same idempotency key
// rather than start over.
var ErrUnavailable = errors.New("payment gateway unavailable")

type ChargeRequest struct {
	AmountCents    int64
	Currency       string
	PaymentToken   string
	IdempotencyKey string
}

// ChargeResult is discriminated by Approved: Reference carries the
// gateway payment id on approval, ReasonCode the decline code otherwise.
type ChargeResult struct {
	Approved   bool
	Reference  string
	ReasonCode string
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

type SquareClient struct {
	httpClient  *http.Client
	baseURL     string
	credentials CredentialProvider
}

var _ Gateway = (*SquareClient)(nil)

func NewSquareClient(baseURL string, credentials CredentialProvider, timeout time.Duration) *SquareClient {
	return &SquareClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:     baseURL,
		credentials: credentials,
	}
}

type squareMoney struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type squarePaymentRequest struct {
	IdempotencyKey string      `json:"idempotency_key"`
	SourceID       string      `json:"source_id"`
	AmountMoney    squareMoney `json:"amount_money"`
}

type squarePayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type squareError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
}

type squarePaymentResponse struct {
	Payment squarePayment `json:"payment"`
	Errors  []squareError `json:"errors"`
}

// Charge submits a payment. Square deduplicates on the idempotency key:
// a retried call for an already-captured payment returns the original
// payment, which this method reports as approved. That gives the
// at-most-one-charge guarantee for a fixed key.
func (c *SquareClient) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	token, err := c.credentials.AccessToken()
	if err != nil {
		return nil, fmt.Errorf("gateway credentials: %w", err)
	}

	payload := squarePaymentRequest{
		IdempotencyKey: req.IdempotencyKey,
		SourceID:       req.PaymentToken,
		AmountMoney: squareMoney{
			Amount:   req.AmountCents,
			Currency: req.Currency,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/payments", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("build payment request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, string(b))
	}

	var result squarePaymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &ChargeResult{
			Approved:  true,
			Reference: result.Payment.ID,
		}, nil
	}

	if code, ok := declineCode(result.Errors); ok {
		return &ChargeResult{
			Approved:   false,
			ReasonCode: code,
		}, nil
	}

	return nil, fmt.Errorf("unexpected gateway response: status=%d errors=%v", resp.StatusCode, result.Errors)
}

// declineCode picks the decline out of the error list. Square reports
// card refusals under the PAYMENT_METHOD_ERROR category; anything else
// on a 4xx is a request bug, not a decline.
func declineCode(errs []squareError) (string, bool) {
	for _, e := range errs {
		if e.Category == "PAYMENT_METHOD_ERROR" {
			return e.Code, true
		}
	}
	return "", false
}

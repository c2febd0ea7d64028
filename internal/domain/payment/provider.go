package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"

	ierr "github.com/whiteghostDev/Saas-lotus-sub000/internal/errors"
)

// Status of an external payment object as reported by the processor
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Provider is the payment processor collaborator. Real connectors live
// outside the core; the engine only creates payment objects for finalized
// invoices and polls their status.
type Provider interface {
	Name() string
	// CreatePaymentObject registers the invoice amount with the processor
	// and returns an opaque reference stored on the invoice. The
	// idempotency key makes retried creations safe on the processor side.
	CreatePaymentObject(ctx context.Context, customerRef string, amount decimal.Decimal, currency, idempotencyKey string) (ref string, err error)
	// GetPaymentStatus polls the processor for the object's status
	GetPaymentStatus(ctx context.Context, ref string) (Status, error)
}

// NoopProvider is used when no processor is configured; invoices stay unpaid
// until patched through the API
type NoopProvider struct{}

func (NoopProvider) Name() string { return "none" }

func (NoopProvider) CreatePaymentObject(ctx context.Context, customerRef string, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	return "", nil
}

func (NoopProvider) GetPaymentStatus(ctx context.Context, ref string) (Status, error) {
	return StatusPending, nil
}

// RemoteProvider talks to a processor connector over HTTP with retries
type RemoteProvider struct {
	ProviderName string
	BaseURL      string
	client       *retryablehttp.Client
}

func NewRemoteProvider(name, baseURL string) *RemoteProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil
	return &RemoteProvider{
		ProviderName: name,
		BaseURL:      baseURL,
		client:       client,
	}
}

func (p *RemoteProvider) Name() string { return p.ProviderName }

func (p *RemoteProvider) CreatePaymentObject(ctx context.Context, customerRef string, amount decimal.Decimal, currency, idempotencyKey string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"customer": customerRef,
		"amount":   amount.String(),
		"currency": currency,
	})
	if err != nil {
		return "", err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/payment_objects", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Payment processor is unreachable").
			Mark(ierr.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", ierr.NewError(fmt.Sprintf("payment processor returned %d", resp.StatusCode)).
			WithHint("Payment processor rejected the payment object").
			Mark(ierr.ErrUpstream)
	}

	var out struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", ierr.WithError(err).Mark(ierr.ErrUpstream)
	}
	return out.Ref, nil
}

func (p *RemoteProvider) GetPaymentStatus(ctx context.Context, ref string) (Status, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/payment_objects/"+ref, nil)
	if err != nil {
		return StatusPending, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return StatusPending, ierr.WithError(err).
			WithHint("Payment processor is unreachable").
			Mark(ierr.ErrUpstream)
	}
	defer resp.Body.Close()

	var out struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusPending, ierr.WithError(err).Mark(ierr.ErrUpstream)
	}
	return out.Status, nil
}

package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrProvider is returned when the payment provider cannot be reached or answers with a server error.
var ErrProvider = errors.New("payment provider error")

// Provider is the payment gateway used by the ledger.
type Provider interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// InitializeRequest starts a checkout. AmountCents is in the currency's minor unit.
type InitializeRequest struct {
	Email       string
	AmountCents int64
	Currency    string
	Reference   string
	CallbackURL string
	Metadata    map[string]interface{}
}

// InitializeResult is the provider's checkout handle.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// Verification is the provider's view of a transaction.
type Verification struct {
	Reference     string
	Status        string
	PaidAt        *time.Time
	Channel       string
	AmountCents   int64
	Currency      string
	CustomerEmail string
	CustomerName  string
	Raw           json.RawMessage
}

// Successful reports whether the provider settled the transaction.
func (v *Verification) Successful() bool {
	return v != nil && v.Status == "success"
}

// Paystack is a minimal client for the Paystack transaction API.
type Paystack struct {
	secretKey string
	baseURL   string
	http      *http.Client
}

// NewPaystack creates a client. timeout bounds every request.
func NewPaystack(secretKey, baseURL string, timeout time.Duration) *Paystack {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Paystack{
		secretKey: secretKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
	}
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize calls POST /transaction/initialize.
func (p *Paystack) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := map[string]interface{}{
		"email":        req.Email,
		"amount":       req.AmountCents,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = req.Metadata
	}
	status, env, err := p.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	if status >= 300 || !env.Status {
		return nil, fmt.Errorf("%w: initialize: %d %s", ErrProvider, status, env.Message)
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode initialize: %v", ErrProvider, err)
	}
	return &InitializeResult{AuthorizationURL: data.AuthorizationURL, AccessCode: data.AccessCode, Reference: data.Reference}, nil
}

// Verify calls GET /transaction/verify/:reference. A reference the provider rejects (4xx) yields a
// verification whose status is "not_found" rather than an error.
func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	status, env, err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	if status >= 500 {
		return nil, fmt.Errorf("%w: verify: %d %s", ErrProvider, status, env.Message)
	}
	if status >= 400 || !env.Status {
		return &Verification{Reference: reference, Status: "not_found"}, nil
	}
	var data struct {
		Reference string     `json:"reference"`
		Status    string     `json:"status"`
		PaidAt    *time.Time `json:"paid_at"`
		Channel   string     `json:"channel"`
		Amount    int64      `json:"amount"`
		Currency  string     `json:"currency"`
		Customer  struct {
			Email     string `json:"email"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
		} `json:"customer"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode verify: %v", ErrProvider, err)
	}
	return &Verification{
		Reference:     data.Reference,
		Status:        data.Status,
		PaidAt:        data.PaidAt,
		Channel:       data.Channel,
		AmountCents:   data.Amount,
		Currency:      data.Currency,
		CustomerEmail: data.Customer.Email,
		CustomerName:  strings.TrimSpace(data.Customer.FirstName + " " + data.Customer.LastName),
		Raw:           env.Data,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, path string, body interface{}) (int, *paystackEnvelope, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	var env paystackEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err != nil {
		if resp.StatusCode >= 500 {
			return resp.StatusCode, &env, nil
		}
		return 0, nil, fmt.Errorf("%w: decode response (%d): %v", ErrProvider, resp.StatusCode, err)
	}
	return resp.StatusCode, &env, nil
}

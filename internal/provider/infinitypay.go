package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/edvin/billing/internal/metrics"
	"github.com/edvin/billing/internal/model"
)

// InfinityPayConfig configures the checkout-link provider.
type InfinityPayConfig struct {
	APIURL     string
	Handle     string
	WebhookURL string
	Timeout    time.Duration
}

// InfinityPay creates hosted checkout links and verifies payments through the
// payment_check endpoint. For VerifyPayment, TransactionID is the
// transaction_nsu, OrderID the order_nsu and InvoiceSlug the invoice slug.
type InfinityPay struct {
	cfg        InfinityPayConfig
	httpClient *http.Client
	validate   *validator.Validate
	metrics    metrics.BillingRecorder
}

func NewInfinityPay(cfg InfinityPayConfig, rec metrics.BillingRecorder) *InfinityPay {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &InfinityPay{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  rec,
	}
}

func (p *InfinityPay) Name() string { return model.ProviderInfinityPay }

type infinityPayItem struct {
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

type infinityPayAddress struct {
	CEP          string `json:"cep,omitempty"`
	Street       string `json:"street,omitempty"`
	Number       string `json:"number,omitempty"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
}

type infinityPayCustomer struct {
	Name        string              `json:"name,omitempty"`
	Email       string              `json:"email,omitempty"`
	PhoneNumber string              `json:"phone_number,omitempty"`
	Address     *infinityPayAddress `json:"address,omitempty"`
}

type infinityPayLinkRequest struct {
	Handle      string               `json:"handle"`
	Items       []infinityPayItem    `json:"items"`
	OrderNSU    string               `json:"order_nsu"`
	RedirectURL string               `json:"redirect_url,omitempty"`
	WebhookURL  string               `json:"webhook_url,omitempty"`
	Customer    *infinityPayCustomer `json:"customer,omitempty"`
	Metadata    map[string]string    `json:"metadata,omitempty"`
}

type urlField struct {
	URL string `json:"url"`
}

type infinityPayLinkResponse struct {
	URL  string    `json:"url"`
	Data *urlField `json:"data"`
	Link *urlField `json:"link"`
}

// checkoutURL picks the first non-empty URL among the shapes the API returns.
func (r infinityPayLinkResponse) checkoutURL() string {
	switch {
	case r.URL != "":
		return r.URL
	case r.Data != nil && r.Data.URL != "":
		return r.Data.URL
	case r.Link != nil && r.Link.URL != "":
		return r.Link.URL
	}
	return ""
}

func (p *InfinityPay) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.OrderNSU == "" || len(req.Items) == 0 {
		return "", fmt.Errorf("%w: checkout needs an order_nsu and at least one item", ErrBadGateway)
	}

	customer, err := p.customerPayload(req.Customer)
	if err != nil {
		return "", err
	}

	body := infinityPayLinkRequest{
		Handle:      p.cfg.Handle,
		OrderNSU:    req.OrderNSU,
		RedirectURL: req.RedirectURL,
		WebhookURL:  p.cfg.WebhookURL,
		Customer:    customer,
		Metadata:    req.Metadata,
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, infinityPayItem{
			Quantity:    it.Quantity,
			Price:       decimalToCents(it.UnitPrice),
			Description: it.Description,
		})
	}

	var resp infinityPayLinkResponse
	if err := p.post(ctx, "create_checkout", "/links", body, &resp); err != nil {
		return "", err
	}

	url := resp.checkoutURL()
	if url == "" {
		return "", fmt.Errorf("%w: infinitypay response has no checkout url", ErrBadGateway)
	}
	return url, nil
}

// customerPayload drops customers without identifying fields, address
// included, and rejects malformed ones before they reach the provider.
func (p *InfinityPay) customerPayload(c *Customer) (*infinityPayCustomer, error) {
	if !c.Identifying() {
		return nil, nil
	}

	normalized := *c
	normalized.Email = strings.TrimSpace(c.Email)
	if c.Address != nil {
		addr := *c.Address
		addr.CEP = strings.ReplaceAll(strings.TrimSpace(addr.CEP), "-", "")
		addr.State = strings.ToUpper(strings.TrimSpace(addr.State))
		normalized.Address = &addr
	}

	if err := p.validate.Struct(normalized); err != nil {
		return nil, fmt.Errorf("%w: invalid customer: %v", ErrBadGateway, err)
	}

	out := &infinityPayCustomer{
		Name:        normalized.Name,
		Email:       normalized.Email,
		PhoneNumber: normalized.Phone,
	}
	if a := normalized.Address; a != nil && *a != (Address{}) {
		out.Address = &infinityPayAddress{
			CEP:          a.CEP,
			Street:       a.Street,
			Number:       a.Number,
			Complement:   a.Complement,
			Neighborhood: a.Neighborhood,
			City:         a.City,
			State:        a.State,
		}
	}
	return out, nil
}

type infinityPayCheckRequest struct {
	Handle         string `json:"handle"`
	OrderNSU       string `json:"order_nsu"`
	TransactionNSU string `json:"transaction_nsu"`
	Slug           string `json:"slug"`
}

type infinityPayCheckResponse struct {
	Success       bool   `json:"success"`
	Paid          bool   `json:"paid"`
	Amount        int64  `json:"amount"`
	PaidAmount    int64  `json:"paid_amount"`
	Installments  int    `json:"installments"`
	CaptureMethod string `json:"capture_method"`
}

func (p *InfinityPay) VerifyPayment(ctx context.Context, req VerifyRequest) (Verification, error) {
	if !req.Complete() {
		return Verification{Paid: false}, nil
	}

	body := infinityPayCheckRequest{
		Handle:         p.cfg.Handle,
		OrderNSU:       req.OrderID,
		TransactionNSU: req.TransactionID,
		Slug:           req.InvoiceSlug,
	}

	var raw map[string]any
	if err := p.post(ctx, "verify_payment", "/payment_check", body, &raw); err != nil {
		return Verification{}, err
	}

	// Decode the typed view from the raw map so Raw keeps unknown fields.
	var resp infinityPayCheckResponse
	encoded, _ := json.Marshal(raw)
	if err := json.Unmarshal(encoded, &resp); err != nil {
		return Verification{}, fmt.Errorf("%w: decode payment_check: %v", ErrBadGateway, err)
	}

	cents := resp.PaidAmount
	if cents == 0 {
		cents = resp.Amount
	}
	return Verification{
		Paid:     resp.Success && resp.Paid,
		Amount:   centsToDecimal(cents),
		Currency: "BRL",
		Raw:      raw,
	}, nil
}

func (p *InfinityPay) post(ctx context.Context, op, path string, body, result any) (err error) {
	start := time.Now()
	defer func() { p.metrics.ProviderCall(p.Name(), op, time.Since(start), err) }()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: infinitypay request: %v", ErrBadGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: infinitypay %s: status %d: %s", ErrBadGateway, path, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: decode infinitypay %s response: %v", ErrBadGateway, path, err)
	}
	return nil
}

// Package provider wraps the outbound payment provider APIs behind a common
// contract. Adapters never touch the database.
package provider

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrBadGateway marks a failure of the remote payment provider: transport
// errors, unexpected responses and inputs the provider would reject.
var ErrBadGateway = errors.New("payment provider error")

// Provider is implemented by each payment provider adapter.
type Provider interface {
	Name() string
	// CreateCheckout returns the URL of the provider-hosted checkout page.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error)
	// VerifyPayment asks the provider whether the payment identified by req
	// has been paid. Missing identifiers yield an unpaid Verification and no
	// network call.
	VerifyPayment(ctx context.Context, req VerifyRequest) (Verification, error)
}

// Item is one checkout line.
type Item struct {
	Description string
	Quantity    int64
	UnitPrice   decimal.Decimal
}

// Customer is optional payer information forwarded to the provider.
type Customer struct {
	Name    string   `validate:"omitempty,max=120"`
	Email   string   `validate:"omitempty,email"`
	Phone   string   `validate:"omitempty,e164"`
	Address *Address `validate:"omitempty"`
}

// Address is a Brazilian postal address. CEP may contain a dash.
type Address struct {
	CEP          string `validate:"omitempty,len=8,numeric"`
	Street       string
	Number       string
	Complement   string
	Neighborhood string
	City         string
	State        string `validate:"omitempty,len=2,alpha"`
}

// Identifying reports whether the customer carries anything that identifies
// a payer. An address on its own does not.
func (c *Customer) Identifying() bool {
	return c != nil && (c.Name != "" || c.Email != "" || c.Phone != "")
}

type CheckoutRequest struct {
	OrderNSU    string
	Items       []Item
	Currency    string
	RedirectURL string
	// Metadata is echoed back by the provider on webhooks where supported.
	Metadata map[string]string
	Customer *Customer
}

// Total returns the sum of all item prices.
func (r CheckoutRequest) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range r.Items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt(it.Quantity)))
	}
	return total
}

// VerifyRequest carries the three identifiers required to verify a payment.
// Their provider-specific meaning is documented on each adapter.
type VerifyRequest struct {
	TransactionID string
	OrderID       string
	InvoiceSlug   string
}

// Complete reports whether all identifiers are present.
func (r VerifyRequest) Complete() bool {
	return r.TransactionID != "" && r.OrderID != "" && r.InvoiceSlug != ""
}

// Verification is the provider's answer about a payment.
type Verification struct {
	Paid bool
	// Amount is the amount the provider reports as paid. Zero when unknown.
	Amount   decimal.Decimal
	Currency string
	Raw      map[string]any
}

// Set holds the configured providers by name.
type Set struct {
	providers map[string]Provider
}

func NewSet(providers ...Provider) *Set {
	s := &Set{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		s.providers[p.Name()] = p
	}
	return s
}

func (s *Set) Get(name string) (Provider, bool) {
	p, ok := s.providers[name]
	return p, ok
}

// Names returns the configured provider names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func decimalToCents(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/edvin/billing/internal/plan"
	"github.com/edvin/billing/internal/platform"
	"github.com/edvin/billing/internal/provider"
)

// CheckoutParams is a request to buy a plan.
type CheckoutParams struct {
	Plan        string
	Provider    string
	RedirectURL string
}

// CheckoutService creates provider checkouts for plan purchases.
type CheckoutService struct {
	orgs           OrganizationReader
	providers      Providers
	catalog        *plan.Catalog
	frontendOrigin string
	now            func() time.Time
}

func NewCheckoutService(orgs OrganizationReader, providers Providers, catalog *plan.Catalog, frontendOrigin string) *CheckoutService {
	return &CheckoutService{
		orgs:           orgs,
		providers:      providers,
		catalog:        catalog,
		frontendOrigin: strings.TrimRight(frontendOrigin, "/"),
		now:            time.Now,
	}
}

// Create validates the purchase and returns the provider checkout URL.
// Provider failures match provider.ErrBadGateway.
func (s *CheckoutService) Create(ctx context.Context, orgID string, params CheckoutParams) (string, error) {
	p, ok := s.catalog.Lookup(params.Plan)
	if !ok || !p.Purchasable {
		return "", fmt.Errorf("plan %q: %w", params.Plan, ErrUnknownPlan)
	}

	prov, ok := s.providers.Get(params.Provider)
	if !ok {
		return "", fmt.Errorf("provider %q: %w", params.Provider, ErrUnknownProvider)
	}

	raw := params.RedirectURL
	if raw == "" {
		raw = "/billing"
	}
	redirect, ok := platform.ResolveRedirect(s.frontendOrigin, raw)
	if !ok {
		return "", ErrInvalidRedirect
	}

	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return "", err
	}

	req := provider.CheckoutRequest{
		OrderNSU: provider.BuildOrderNSU(org.ID, s.now()),
		Items: []provider.Item{{
			Description: p.DisplayName,
			Quantity:    1,
			UnitPrice:   p.Price,
		}},
		Currency:    p.Currency,
		RedirectURL: redirect,
		Metadata: map[string]string{
			"plan":            p.Name,
			"organization_id": org.ID,
		},
	}
	if org.BillingEmail != nil && *org.BillingEmail != "" {
		req.Customer = &provider.Customer{Name: org.Name, Email: *org.BillingEmail}
	}

	url, err := prov.CreateCheckout(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create %s checkout for organization %s: %w", prov.Name(), org.ID, err)
	}
	return url, nil
}

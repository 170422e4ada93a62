// Package plan holds the plan catalog: plan names mapped to entitlement limits,
// access duration and price.
package plan

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Plan names.
const (
	Free               = "free"
	Starter            = "starter"
	Professional       = "professional"
	ProfessionalAnnual = "professional_annual"
)

const gib = int64(1) << 30

// Plan describes the limits and pricing of a single plan.
type Plan struct {
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name"`
	Seats        int64           `json:"seats"`
	Projects     int64           `json:"projects"`
	StorageBytes int64           `json:"storage_bytes"`
	AICredits    int64           `json:"ai_credits"`
	Duration     time.Duration   `json:"-"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency"`
	Purchasable  bool            `json:"purchasable"`
}

// PriceCents returns the price in minor currency units.
func (p Plan) PriceCents() int64 {
	return p.Price.Shift(2).Round(0).IntPart()
}

// Catalog is a read-only plan lookup.
type Catalog struct {
	plans map[string]Plan
}

// NewCatalog builds a catalog from the given plans. Later duplicates win.
func NewCatalog(plans ...Plan) *Catalog {
	c := &Catalog{plans: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		c.plans[p.Name] = p
	}
	return c
}

// DefaultCatalog returns the built-in plans.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		Plan{
			Name: Free, DisplayName: "Free",
			Seats: 1, Projects: 1, StorageBytes: 1 * gib, AICredits: 10,
			Price: decimal.Zero, Currency: "BRL",
		},
		Plan{
			Name: Starter, DisplayName: "Starter",
			Seats: 3, Projects: 5, StorageBytes: 10 * gib, AICredits: 100,
			Duration: 30 * 24 * time.Hour, Price: decimal.RequireFromString("49.90"), Currency: "BRL",
			Purchasable: true,
		},
		Plan{
			Name: Professional, DisplayName: "Professional",
			Seats: 10, Projects: 25, StorageBytes: 100 * gib, AICredits: 500,
			Duration: 30 * 24 * time.Hour, Price: decimal.RequireFromString("149.90"), Currency: "BRL",
			Purchasable: true,
		},
		Plan{
			Name: ProfessionalAnnual, DisplayName: "Professional (annual)",
			Seats: 10, Projects: 25, StorageBytes: 100 * gib, AICredits: 500,
			Duration: 365 * 24 * time.Hour, Price: decimal.RequireFromString("1499.00"), Currency: "BRL",
			Purchasable: true,
		},
	)
}

// Lookup returns the plan with the given name.
func (c *Catalog) Lookup(name string) (Plan, bool) {
	p, ok := c.plans[name]
	return p, ok
}

// LimitsFor returns the limits for a possibly-nil plan name, falling back to
// the free plan when the name is nil or unknown.
func (c *Catalog) LimitsFor(name *string) Plan {
	if name != nil {
		if p, ok := c.plans[*name]; ok {
			return p
		}
	}
	return c.plans[Free]
}

// ResolveAmount maps a paid amount to the purchasable plan with exactly that
// price. Amounts that match no plan, or match more than one, resolve to nothing.
func (c *Catalog) ResolveAmount(amount decimal.Decimal) (Plan, bool) {
	var found []Plan
	for _, p := range c.plans {
		if p.Purchasable && p.Price.Equal(amount) {
			found = append(found, p)
		}
	}
	if len(found) != 1 {
		return Plan{}, false
	}
	return found[0], true
}

// Purchasable returns the plans that can be bought, cheapest first.
func (c *Catalog) Purchasable() []Plan {
	var out []Plan
	for _, p := range c.plans {
		if p.Purchasable {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type fileFormat struct {
	Plans []filePlan `yaml:"plans"`
}

type filePlan struct {
	Name         string `yaml:"name"`
	DisplayName  string `yaml:"display_name"`
	Seats        int64  `yaml:"seats"`
	Projects     int64  `yaml:"projects"`
	StorageGiB   int64  `yaml:"storage_gib"`
	AICredits    int64  `yaml:"ai_credits"`
	DurationDays int    `yaml:"duration_days"`
	Price        string `yaml:"price"`
	Currency     string `yaml:"currency"`
	Purchasable  bool   `yaml:"purchasable"`
}

// LoadFile reads a YAML plan catalog. An empty path returns the defaults.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plans file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML plan catalog.
func Parse(data []byte) (*Catalog, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, fmt.Errorf("plans file defines no plans")
	}

	plans := make([]Plan, 0, len(f.Plans))
	hasFree := false
	for _, fp := range f.Plans {
		if fp.Name == "" {
			return nil, fmt.Errorf("plan without name")
		}
		price := decimal.Zero
		if fp.Price != "" {
			p, err := decimal.NewFromString(fp.Price)
			if err != nil {
				return nil, fmt.Errorf("plan %s: invalid price %q: %w", fp.Name, fp.Price, err)
			}
			price = p
		}
		if fp.Purchasable && (fp.DurationDays <= 0 || !price.IsPositive()) {
			return nil, fmt.Errorf("plan %s: purchasable plans need a positive price and duration", fp.Name)
		}
		if fp.Name == Free {
			hasFree = true
		}
		currency := fp.Currency
		if currency == "" {
			currency = "BRL"
		}
		plans = append(plans, Plan{
			Name:         fp.Name,
			DisplayName:  fp.DisplayName,
			Seats:        fp.Seats,
			Projects:     fp.Projects,
			StorageBytes: fp.StorageGiB * gib,
			AICredits:    fp.AICredits,
			Duration:     time.Duration(fp.DurationDays) * 24 * time.Hour,
			Price:        price,
			Currency:     currency,
			Purchasable:  fp.Purchasable,
		})
	}
	if !hasFree {
		return nil, fmt.Errorf("plans file must define the %q plan", Free)
	}
	return NewCatalog(plans...), nil
}

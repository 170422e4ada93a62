package request

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// InfinityPayWebhook is the checkout-link provider's payment notification.
// Amounts are in cents.
type InfinityPayWebhook struct {
	InvoiceSlug    string            `json:"invoice_slug"`
	Amount         int64             `json:"amount"`
	PaidAmount     int64             `json:"paid_amount"`
	Installments   int               `json:"installments"`
	CaptureMethod  string            `json:"capture_method"`
	TransactionNSU string            `json:"transaction_nsu"`
	OrderNSU       string            `json:"order_nsu"`
	ReceiptURL     string            `json:"receipt_url"`
	Plan           string            `json:"plan"`
	Metadata       map[string]string `json:"metadata"`
}

// ParseInfinityPayWebhook decodes a webhook body. Unknown fields are ignored.
func ParseInfinityPayWebhook(body []byte) (InfinityPayWebhook, error) {
	var p InfinityPayWebhook
	err := json.Unmarshal(body, &p)
	return p, err
}

// PlanName returns the plan from the top-level field or from metadata.
func (p InfinityPayWebhook) PlanName() string {
	if p.Plan != "" {
		return p.Plan
	}
	return p.Metadata["plan"]
}

func (p InfinityPayWebhook) AmountDecimal() decimal.Decimal {
	return decimal.New(p.Amount, -2)
}

func (p InfinityPayWebhook) PaidAmountDecimal() decimal.Decimal {
	return decimal.New(p.PaidAmount, -2)
}

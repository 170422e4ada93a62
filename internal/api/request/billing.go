package request

// VerifyPayment asks for a payment to be checked with the provider now.
// Missing transaction or slug values are accepted and reported as pending.
type VerifyPayment struct {
	TransactionNSU string `json:"transaction_nsu" validate:"omitempty,max=128"`
	OrderNSU       string `json:"order_nsu" validate:"required,order_nsu"`
	Slug           string `json:"slug" validate:"omitempty,max=128"`
	Provider       string `json:"provider" validate:"omitempty,oneof=infinitypay stripe"`
}

// CreateCheckout starts a plan purchase.
type CreateCheckout struct {
	Plan        string `json:"plan" validate:"required,max=64"`
	Provider    string `json:"provider" validate:"required,oneof=infinitypay stripe"`
	RedirectURL string `json:"redirect_url" validate:"omitempty,max=2048"`
}

// AddStorage records bytes added (positive) or freed (negative).
type AddStorage struct {
	Bytes int64 `json:"bytes" validate:"required,ne=0"`
}

// ConsumeAICredits records credits spent.
type ConsumeAICredits struct {
	Credits int64 `json:"credits" validate:"required,gt=0"`
}

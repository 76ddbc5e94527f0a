package processor

import "context"

// Hold statuses as reported by the processor.
const (
	HoldStatusRequiresAction = "requires_action"
	HoldStatusAuthorized     = "authorized"
	HoldStatusCaptured       = "captured"
	HoldStatusCanceled       = "canceled"
	HoldStatusFailed         = "failed"
)

// Customer is a processor-side payment-method holder for a buyer.
type Customer struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"`
}

// HoldParams describes an authorization-only hold request. IdempotencyKey must be a
// deterministic function of the reservation so retries are side-effect-free.
type HoldParams struct {
	CustomerID       string            `json:"customer_id"`
	Amount           int64             `json:"amount"` // minor units
	Currency         string            `json:"currency"`
	PaymentMethodRef string            `json:"payment_method"`
	ReturnURL        string            `json:"return_url"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	IdempotencyKey   string            `json:"-"`
}

// Hold is the processor's view of an authorization.
type Hold struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	ClientSecret  string            `json:"client_secret,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// API is the outbound surface of the payment processor. Implemented by *Client;
// tests substitute fakes.
type API interface {
	EnsureCustomer(ctx context.Context, externalID string) (*Customer, error)
	CreateHold(ctx context.Context, params HoldParams) (*Hold, error)
	CaptureHold(ctx context.Context, holdID, idempotencyKey string) (*Hold, error)
	CancelHold(ctx context.Context, holdID, idempotencyKey string) (*Hold, error)
}

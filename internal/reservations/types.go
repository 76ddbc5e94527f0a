package reservations

import "time"

// Reservation statuses. AUTHORIZED is the only live status; everything else is
// terminal.
const (
	StatusAuthorized    = "AUTHORIZED"
	StatusCaptured      = "CAPTURED"
	StatusCanceled      = "CANCELED"
	StatusFailed        = "FAILED"
	StatusCaptureFailed = "CAPTURE_FAILED"
	StatusCancelFailed  = "CANCEL_FAILED"
)

// Reservation represents one buyer's held-funds commitment against a campaign, stored
// in the reservations DynamoDB table. One reservation models one unit.
type Reservation struct {
	ReservationID   string    `dynamodbav:"reservation_id"` // PK
	BuyerID         string    `dynamodbav:"buyer_id"`
	CampaignID      string    `dynamodbav:"campaign_id"` // GSI PK (campaign_id-index)
	AuthorizationID string    `dynamodbav:"authorization_id"`
	CustomerID      string    `dynamodbav:"customer_id,omitempty"` // processor customer ref
	Amount          int64     `dynamodbav:"amount"`                // minor units
	Currency        string    `dynamodbav:"currency"`
	Status          string    `dynamodbav:"status"`
	FailureReason   string    `dynamodbav:"failure_reason,omitempty"`
	CreatedAt       time.Time `dynamodbav:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at"`
}

// CaptureKey is the deterministic idempotency key for capturing this reservation's hold.
func (r Reservation) CaptureKey() string { return "capture-" + r.ReservationID }

// CancelKey is the deterministic idempotency key for canceling this reservation's hold.
func (r Reservation) CancelKey() string { return "cancel-" + r.ReservationID }

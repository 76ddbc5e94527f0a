package validation

// CreateReservationRequest is the payload for POST /reservations. The buyer identity
// comes from the auth token, not the body. One reservation holds funds for one unit.
type CreateReservationRequest struct {
	CampaignID       string `json:"campaign_id" validate:"required"`
	Amount           int64  `json:"amount" validate:"required,gt=0"`          // minor units
	Currency         string `json:"currency" validate:"required,len=3,alpha"` // ISO 4217
	PaymentMethodRef string `json:"payment_method_ref" validate:"required"`
	ReturnURL        string `json:"return_url" validate:"required,url"`
	// ReservationID lets a client resume a timed-out attempt with the same
	// idempotency key; omitted on first tries.
	ReservationID string `json:"reservation_id,omitempty" validate:"omitempty,uuid4"`
}

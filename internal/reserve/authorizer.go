// Package reserve implements reservation creation: an authorization-only fund hold at
// the processor plus an atomic record-and-count write in the record store.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
)

var (
	// ErrCampaignNotFound indicates the referenced campaign does not exist.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrCampaignClosed indicates the campaign already left ACTIVE.
	ErrCampaignClosed = errors.New("campaign is not accepting reservations")
)

// CampaignGetter is the slice of the campaigns store the authorizer needs.
type CampaignGetter interface {
	Get(ctx context.Context, campaignID string) (*campaigns.Campaign, error)
}

// ReservationCreator persists a reservation and increments the campaign counter in one
// transaction.
type ReservationCreator interface {
	CreateWithCampaignIncrement(ctx context.Context, r reservations.Reservation) error
}

// Input is a validated, authenticated reservation request. BuyerID comes from the
// caller's token, never from the request body.
type Input struct {
	BuyerID          string
	CampaignID       string
	Amount           int64
	Currency         string
	PaymentMethodRef string
	ReturnURL        string
	// ReservationID is normally generated; callers retrying after a transport
	// failure supply the previous id so the hold-creation idempotency key matches.
	ReservationID string
}

// Result is returned to the buyer: the reservation reference plus the processor's
// client-side confirmation handle for any interactive step.
type Result struct {
	ReservationID            string
	AuthorizationID          string
	ClientConfirmationSecret string
}

// Authorizer places holds and records reservations.
type Authorizer struct {
	campaigns    CampaignGetter
	reservations ReservationCreator
	processor    processor.API
}

// New returns an Authorizer over the given collaborators.
func New(camp CampaignGetter, resv ReservationCreator, proc processor.API) *Authorizer {
	return &Authorizer{campaigns: camp, reservations: resv, processor: proc}
}

// Create places an authorization-only hold for one unit and persists the reservation
// together with the campaign counter increment in a single transaction.
//
// The hold call uses the reservation id as its idempotency key, so a client retry with
// the same id creates at most one hold. If the hold succeeds but persistence fails the
// hold is left dangling at the processor; the error is logged with both references for
// operational follow-up.
func (a *Authorizer) Create(ctx context.Context, in Input) (*Result, error) {
	camp, err := a.campaigns.Get(ctx, in.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if camp == nil {
		return nil, ErrCampaignNotFound
	}
	if camp.Status != campaigns.StatusActive {
		return nil, ErrCampaignClosed
	}

	reservationID := in.ReservationID
	if reservationID == "" {
		reservationID = uuid.NewString()
	}

	cust, err := a.processor.EnsureCustomer(ctx, in.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("ensure customer: %w", err)
	}

	hold, err := a.processor.CreateHold(ctx, processor.HoldParams{
		CustomerID:       cust.ID,
		Amount:           in.Amount,
		Currency:         in.Currency,
		PaymentMethodRef: in.PaymentMethodRef,
		ReturnURL:        in.ReturnURL,
		IdempotencyKey:   reservationID,
		Metadata: map[string]string{
			"buyer_id":       in.BuyerID,
			"campaign_id":    in.CampaignID,
			"reservation_id": reservationID,
		},
	})
	if err != nil {
		// nothing persisted; the caller retries with the same reservation id
		return nil, fmt.Errorf("create hold: %w", err)
	}

	err = a.reservations.CreateWithCampaignIncrement(ctx, reservations.Reservation{
		ReservationID:   reservationID,
		BuyerID:         in.BuyerID,
		CampaignID:      in.CampaignID,
		AuthorizationID: hold.ID,
		CustomerID:      cust.ID,
		Amount:          in.Amount,
		Currency:        in.Currency,
		Status:          reservations.StatusAuthorized,
	})
	if errors.Is(err, reservations.ErrReservationExists) {
		// retry of an already-committed create; the processor deduplicated the hold
		// by idempotency key, so just return the existing references
		return &Result{
			ReservationID:            reservationID,
			AuthorizationID:          hold.ID,
			ClientConfirmationSecret: hold.ClientSecret,
		}, nil
	}
	if err != nil {
		log.Printf("[reserve] dangling hold %s for reservation %s: %v", hold.ID, reservationID, err)
		return nil, fmt.Errorf("persist reservation: %w", err)
	}

	return &Result{
		ReservationID:            reservationID,
		AuthorizationID:          hold.ID,
		ClientConfirmationSecret: hold.ClientSecret,
	}, nil
}

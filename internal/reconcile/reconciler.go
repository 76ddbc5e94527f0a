// Package reconcile keeps reservation and campaign records consistent with
// processor-reported authorization outcomes.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
	"github.com/Artistsreach/freshonboard-settlement/internal/webhooks"
)

// ReservationRepo is the slice of the reservations store the reconciler needs.
type ReservationRepo interface {
	Get(ctx context.Context, reservationID string) (*reservations.Reservation, error)
	SetStatus(ctx context.Context, reservationID, newStatus, reason string) error
	ReleaseWithCampaignDecrement(ctx context.Context, reservationID, campaignID, newStatus, reason string) error
}

// Reconciler implements webhooks.Handler. All handlers are no-ops for unknown
// reservations so test and unrelated processor events pass through harmlessly. The
// status itself follows the processor's latest report, while the counter give-back
// rides the AUTHORIZED-to-released transition in one transaction, so redelivery and
// reordering can neither skip nor repeat the decrement.
type Reconciler struct {
	reservations ReservationRepo
}

var _ webhooks.Handler = (*Reconciler)(nil)

// New returns a Reconciler over the given store.
func New(resv ReservationRepo) *Reconciler {
	return &Reconciler{reservations: resv}
}

// OnAuthorizationSucceeded re-confirms the reservation as authorized. The counter was
// already incremented at creation time, so there is no counter change here.
func (r *Reconciler) OnAuthorizationSucceeded(ctx context.Context, hold webhooks.HoldEvent) error {
	resv, ok, err := r.lookup(ctx, hold)
	if err != nil || !ok {
		return err
	}
	return r.overwrite(ctx, resv.ReservationID, reservations.StatusAuthorized, "")
}

// OnAuthorizationFailed marks the reservation failed and gives the unit back to the
// campaign counter.
func (r *Reconciler) OnAuthorizationFailed(ctx context.Context, hold webhooks.HoldEvent) error {
	return r.release(ctx, hold, reservations.StatusFailed)
}

// OnAuthorizationCanceled marks the reservation canceled and gives the unit back to
// the campaign counter.
func (r *Reconciler) OnAuthorizationCanceled(ctx context.Context, hold webhooks.HoldEvent) error {
	return r.release(ctx, hold, reservations.StatusCanceled)
}

func (r *Reconciler) release(ctx context.Context, hold webhooks.HoldEvent, status string) error {
	resv, ok, err := r.lookup(ctx, hold)
	if err != nil || !ok {
		return err
	}

	err = r.reservations.ReleaseWithCampaignDecrement(ctx, resv.ReservationID, resv.CampaignID, status, hold.FailureReason)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, reservations.ErrStatusMismatch):
		// already out of AUTHORIZED; the decrement happened on that earlier
		// transition. Apply the processor's report to the status alone.
		if resv.Status == status {
			return nil
		}
		return r.overwrite(ctx, resv.ReservationID, status, hold.FailureReason)
	case errors.Is(err, reservations.ErrCounterDepleted):
		// no provisional slot to give back; still record the outcome
		return r.overwrite(ctx, resv.ReservationID, status, hold.FailureReason)
	default:
		return fmt.Errorf("release reservation %s: %w", resv.ReservationID, err)
	}
}

// overwrite applies the processor's report last-write-wins without touching the
// campaign counter.
func (r *Reconciler) overwrite(ctx context.Context, reservationID, status, reason string) error {
	if err := r.reservations.SetStatus(ctx, reservationID, status, reason); err != nil {
		if errors.Is(err, reservations.ErrStatusMismatch) {
			// reservation disappeared since the lookup; treat like unknown
			return nil
		}
		return fmt.Errorf("mark reservation %s %s: %w", reservationID, status, err)
	}
	return nil
}

func (r *Reconciler) lookup(ctx context.Context, hold webhooks.HoldEvent) (*reservations.Reservation, bool, error) {
	id := hold.ReservationID()
	if id == "" {
		log.Printf("[reconcile] hold %s has no reservation metadata, ignoring", hold.ID)
		return nil, false, nil
	}
	resv, err := r.reservations.Get(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("load reservation %s: %w", id, err)
	}
	if resv == nil {
		log.Printf("[reconcile] unknown reservation %s for hold %s, ignoring", id, hold.ID)
		return nil, false, nil
	}
	return resv, true, nil
}

// OnAccountStatusChanged belongs to the seller-onboarding flow, which is handled
// outside this service.
func (r *Reconciler) OnAccountStatusChanged(ctx context.Context, account webhooks.AccountEvent) error {
	log.Printf("[reconcile] account %s status=%s (no-op)", account.ID, account.Status)
	return nil
}

// OnCheckoutCompleted belongs to the one-off checkout flow, handled outside this
// service.
func (r *Reconciler) OnCheckoutCompleted(ctx context.Context, session webhooks.CheckoutEvent) error {
	log.Printf("[reconcile] checkout %s completed (no-op)", session.ID)
	return nil
}

// OnSubscriptionInvoicePaid belongs to the subscription flow, handled outside this
// service.
func (r *Reconciler) OnSubscriptionInvoicePaid(ctx context.Context, invoice webhooks.InvoiceEvent) error {
	log.Printf("[reconcile] invoice %s paid (no-op)", invoice.ID)
	return nil
}

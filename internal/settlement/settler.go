// Package settlement drives the campaign-level capture-all / release-all decision once
// a campaign's deadline has passed.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
)

// CampaignStore is the slice of the campaigns store settlement needs.
type CampaignStore interface {
	Get(ctx context.Context, campaignID string) (*campaigns.Campaign, error)
	ListDueActive(ctx context.Context, now time.Time) ([]campaigns.Campaign, error)
	SetStatus(ctx context.Context, campaignID, newStatus string) error
}

// ReservationStore is the slice of the reservations store settlement needs.
type ReservationStore interface {
	ListByCampaignStatus(ctx context.Context, campaignID, status string) ([]reservations.Reservation, error)
	WriteOutcomes(ctx context.Context, outcomes []reservations.Reservation) error
}

// MetricsEmitter publishes per-campaign settlement outcome counts.
type MetricsEmitter interface {
	PutSettlementOutcome(ctx context.Context, campaignID string, counts map[string]int) error
}

// Outcome summarizes one campaign's settlement pass.
type Outcome struct {
	CampaignID  string
	FinalStatus string
	Counts      map[string]int // reservation status -> count
}

// Settler runs settlement passes. Per-reservation processor failures are recorded as
// terminal *_FAILED statuses and never stop the remaining reservations or campaigns;
// stuck reservations are an operational concern, not auto-retried.
type Settler struct {
	campaigns    CampaignStore
	reservations ReservationStore
	processor    processor.API
	metrics      MetricsEmitter
	clk          clock.Clock
}

// New returns a Settler. metrics may be nil when no emitter is wired (local mode).
func New(camp CampaignStore, resv ReservationStore, proc processor.API, metrics MetricsEmitter, clk clock.Clock) *Settler {
	return &Settler{
		campaigns:    camp,
		reservations: resv,
		processor:    proc,
		metrics:      metrics,
		clk:          clk,
	}
}

// SettleDue settles every campaign whose deadline has passed. Campaign failures are
// isolated: the pass continues and the first error is returned at the end.
func (s *Settler) SettleDue(ctx context.Context) error {
	now := s.clk.Now()
	due, err := s.campaigns.ListDueActive(ctx, now)
	if err != nil {
		return fmt.Errorf("list due campaigns: %w", err)
	}
	log.Printf("[settle] %d campaigns due at %s", len(due), now.Format(time.RFC3339))

	var firstErr error
	for _, c := range due {
		if _, err := s.SettleCampaign(ctx, c); err != nil {
			log.Printf("[settle] campaign %s: %v", c.CampaignID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SettleCampaignID loads a campaign by id and settles it if due. Used by the queue
// worker, which receives campaign ids fanned out by the scheduler.
func (s *Settler) SettleCampaignID(ctx context.Context, campaignID string) (*Outcome, error) {
	camp, err := s.campaigns.Get(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load campaign: %w", err)
	}
	if camp == nil {
		return nil, fmt.Errorf("campaign not found: %s", campaignID)
	}
	return s.SettleCampaign(ctx, *camp)
}

// SettleCampaign runs one settlement pass:
//
//  1. skip campaigns that are not due (future deadline or already settled)
//  2. load the campaign's AUTHORIZED reservations
//  3. goal met -> capture every hold; goal missed -> cancel every hold
//  4. persist per-reservation outcomes (chunked batch writes)
//  5. set the terminal campaign status, even when some reservations ended *_FAILED
func (s *Settler) SettleCampaign(ctx context.Context, camp campaigns.Campaign) (*Outcome, error) {
	now := s.clk.Now()
	if !camp.Due(now) {
		log.Printf("[settle] campaign %s not due (status=%s release=%s), skipping",
			camp.CampaignID, camp.Status, camp.ReleaseDate.Format(time.RFC3339))
		return nil, nil
	}

	resvs, err := s.reservations.ListByCampaignStatus(ctx, camp.CampaignID, reservations.StatusAuthorized)
	if err != nil {
		return nil, fmt.Errorf("list authorized reservations: %w", err)
	}

	goalMet := camp.GoalMet()
	finalStatus := campaigns.StatusGoalFailed
	if goalMet {
		finalStatus = campaigns.StatusReleased
	}
	log.Printf("[settle] campaign %s: goal %d/%d, %d authorized reservations, deciding %s",
		camp.CampaignID, camp.CurrentQuantity, camp.TargetQuantity, len(resvs), finalStatus)

	outcome := &Outcome{
		CampaignID:  camp.CampaignID,
		FinalStatus: finalStatus,
		Counts:      map[string]int{},
	}
	settled := make([]reservations.Reservation, 0, len(resvs))
	for _, r := range resvs {
		if goalMet {
			settled = append(settled, s.capture(ctx, r))
		} else {
			settled = append(settled, s.cancel(ctx, r))
		}
		outcome.Counts[settled[len(settled)-1].Status]++
	}

	if err := s.reservations.WriteOutcomes(ctx, settled); err != nil {
		// statuses already settled at the processor; keep going so the campaign
		// still reaches its terminal status, but surface the divergence
		log.Printf("[settle] campaign %s: outcome write incomplete: %v", camp.CampaignID, err)
	}

	if err := s.campaigns.SetStatus(ctx, camp.CampaignID, finalStatus); err != nil {
		if errors.Is(err, campaigns.ErrAlreadySettled) {
			log.Printf("[settle] campaign %s already settled elsewhere", camp.CampaignID)
		} else {
			return outcome, fmt.Errorf("set campaign status: %w", err)
		}
	}

	if s.metrics != nil {
		if err := s.metrics.PutSettlementOutcome(ctx, camp.CampaignID, outcome.Counts); err != nil {
			log.Printf("[settle] campaign %s: metrics: %v", camp.CampaignID, err)
		}
	}
	return outcome, nil
}

func (s *Settler) capture(ctx context.Context, r reservations.Reservation) reservations.Reservation {
	_, err := s.processor.CaptureHold(ctx, r.AuthorizationID, r.CaptureKey())
	if err != nil {
		log.Printf("[settle] capture failed for reservation %s: %v", r.ReservationID, err)
		r.Status = reservations.StatusCaptureFailed
		r.FailureReason = err.Error()
		return r
	}
	r.Status = reservations.StatusCaptured
	r.FailureReason = ""
	return r
}

func (s *Settler) cancel(ctx context.Context, r reservations.Reservation) reservations.Reservation {
	_, err := s.processor.CancelHold(ctx, r.AuthorizationID, r.CancelKey())
	if err != nil {
		log.Printf("[settle] cancel failed for reservation %s: %v", r.ReservationID, err)
		r.Status = reservations.StatusCancelFailed
		r.FailureReason = err.Error()
		return r
	}
	r.Status = reservations.StatusCanceled
	r.FailureReason = ""
	return r
}

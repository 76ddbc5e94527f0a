package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/settlement"
)

// Processor consumes settlement queue messages and settles one campaign per message.
type Processor struct {
	settler *settlement.Settler
}

// NewProcessor builds a Processor over injected collaborators.
func NewProcessor(campaignStore settlement.CampaignStore, reservationStore settlement.ReservationStore, proc processor.API, metrics settlement.MetricsEmitter, clk clock.Clock) *Processor {
	return &Processor{
		settler: settlement.New(campaignStore, reservationStore, proc, metrics, clk),
	}
}

// Handle receives an SQS batch event and processes each message. A message error is
// returned so the runtime redelivers the batch; settlement is idempotent because the
// campaign's terminal-status guard turns a replay into a skip.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			log.Printf("settler error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg SettlementMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}
	if msg.CampaignID == "" {
		return fmt.Errorf("message missing campaign_id: %s", rec.Body)
	}

	log.Printf("[settler] received campaign=%s scheduled_for=%s", msg.CampaignID, msg.ScheduledFor)

	outcome, err := p.settler.SettleCampaignID(ctx, msg.CampaignID)
	if err != nil {
		return fmt.Errorf("settle campaign %s: %w", msg.CampaignID, err)
	}
	if outcome == nil {
		// stale message for a campaign already settled or not yet due
		log.Printf("[settler] campaign %s skipped", msg.CampaignID)
		return nil
	}
	if err := logOutcome(outcome); err != nil {
		return err
	}
	return nil
}

func logOutcome(o *settlement.Outcome) error {
	counts, err := json.Marshal(o.Counts)
	if err != nil {
		return fmt.Errorf("marshal outcome counts: %w", err)
	}
	log.Printf("[settler] campaign %s settled: final=%s counts=%s", o.CampaignID, o.FinalStatus, counts)
	return nil
}

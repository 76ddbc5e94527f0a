// The scheduler runs once daily from an EventBridge cron. It enumerates campaigns past
// their deadline and fans each one out to the settlement queue, so per-campaign
// failures retry independently. With no queue configured it settles inline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Artistsreach/freshonboard-settlement/internal/aws"
	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/config"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
	"github.com/Artistsreach/freshonboard-settlement/internal/settlement"
)

// SettlementMessage is the queue payload for one due campaign.
type SettlementMessage struct {
	CampaignID   string `json:"campaign_id"`
	ScheduledFor string `json:"scheduled_for"`
}

type scheduler struct {
	campaigns *campaigns.Store
	publisher *aws.Publisher
	settler   *settlement.Settler
	clk       clock.Clock
}

func (s *scheduler) handle(ctx context.Context, ev events.CloudWatchEvent) error {
	// no queue configured: run the whole pass in-process
	if s.publisher == nil {
		return s.settler.SettleDue(ctx)
	}

	now := s.clk.Now()
	due, err := s.campaigns.ListDueActive(ctx, now)
	if err != nil {
		return fmt.Errorf("list due campaigns: %w", err)
	}
	log.Printf("[scheduler] enqueueing %d due campaigns", len(due))

	var firstErr error
	for _, c := range due {
		body, err := json.Marshal(SettlementMessage{
			CampaignID:   c.CampaignID,
			ScheduledFor: now.Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("marshal settlement message: %w", err)
		}
		attrs := map[string]string{"campaign_id": c.CampaignID}
		if err := s.publisher.SendSettlementMessage(ctx, string(body), attrs); err != nil {
			log.Printf("[scheduler] enqueue campaign %s: %v", c.CampaignID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func main() {
	var envCfg config.Scheduler
	if err := config.Parse(&envCfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	clk := clock.NewSystem()
	campaignStore := campaigns.NewStore(clients.DynamoDB, envCfg.CampaignsTable)
	reservationStore := reservations.NewStore(clients.DynamoDB, envCfg.ReservationsTable, envCfg.CampaignsTable)
	proc := processor.NewClient(envCfg.ProcessorBaseURL, envCfg.ProcessorAPIKey)
	metrics := aws.NewMetrics(clients.CloudWatch)

	s := &scheduler{
		campaigns: campaignStore,
		settler:   settlement.New(campaignStore, reservationStore, proc, metrics, clk),
		clk:       clk,
	}
	if envCfg.SettlementQueueURL != "" {
		s.publisher = aws.NewPublisher(clients.SQS, envCfg.SettlementQueueURL)
	}

	if envCfg.RunLocal {
		if err := s.handle(context.Background(), events.CloudWatchEvent{}); err != nil {
			log.Printf("scheduler error: %v", err)
			os.Exit(1)
		}
		return
	}

	lambda.Start(s.handle)
}

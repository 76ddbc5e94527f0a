package main

import (
	"context"
	"encoding/json"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Artistsreach/freshonboard-settlement/internal/aws"
	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/config"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
)

func main() {
	var envCfg config.Settler
	if err := config.Parse(&envCfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	p := NewProcessor(
		campaigns.NewStore(clients.DynamoDB, envCfg.CampaignsTable),
		reservations.NewStore(clients.DynamoDB, envCfg.ReservationsTable, envCfg.CampaignsTable),
		processor.NewClient(envCfg.ProcessorBaseURL, envCfg.ProcessorAPIKey),
		aws.NewMetrics(clients.CloudWatch),
		clock.NewSystem(),
	)

	// If RUN_LOCAL=true, simulate a single SQS event from the environment.
	if envCfg.RunLocal {
		testBody := os.Getenv("LOCAL_SQS_BODY")
		if testBody == "" {
			body, _ := json.Marshal(SettlementMessage{CampaignID: "local-campaign-1"})
			testBody = string(body)
		}
		event := events.SQSEvent{
			Records: []events.SQSMessage{
				{Body: testBody},
			},
		}
		if err := p.Handle(context.Background(), event); err != nil {
			log.Fatalf("local handler error: %v", err)
		}
		return
	}

	lambda.Start(p.Handle)
}

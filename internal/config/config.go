package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// API holds configuration for the reservation/webhook API process. Secrets are injected
// through the environment at process start and never read again afterwards.
type API struct {
	CampaignsTable    string `env:"CAMPAIGNS_TABLE,required"`
	ReservationsTable string `env:"RESERVATIONS_TABLE,required"`
	JWTSecret         string `env:"JWT_SECRET,required"`
	WebhookSecret     string `env:"WEBHOOK_SIGNING_SECRET,required"`
	ProcessorBaseURL  string `env:"PROCESSOR_BASE_URL,required"`
	ProcessorAPIKey   string `env:"PROCESSOR_API_KEY,required"`
	RunLocal          bool   `env:"RUN_LOCAL"`
	ListenAddr        string `env:"LISTEN_ADDR" envDefault:":8080"`
}

// Scheduler holds configuration for the daily scheduler process.
type Scheduler struct {
	CampaignsTable     string `env:"CAMPAIGNS_TABLE,required"`
	ReservationsTable  string `env:"RESERVATIONS_TABLE,required"`
	SettlementQueueURL string `env:"SETTLEMENT_QUEUE_URL"`
	ProcessorBaseURL   string `env:"PROCESSOR_BASE_URL,required"`
	ProcessorAPIKey    string `env:"PROCESSOR_API_KEY,required"`
	RunLocal           bool   `env:"RUN_LOCAL"`
}

// Settler holds configuration for the SQS-driven settlement worker.
type Settler struct {
	CampaignsTable    string `env:"CAMPAIGNS_TABLE,required"`
	ReservationsTable string `env:"RESERVATIONS_TABLE,required"`
	ProcessorBaseURL  string `env:"PROCESSOR_BASE_URL,required"`
	ProcessorAPIKey   string `env:"PROCESSOR_API_KEY,required"`
	RunLocal          bool   `env:"RUN_LOCAL"`
}

// Parse loads configuration from environment variables into target.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

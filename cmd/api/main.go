package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"

	"github.com/Artistsreach/freshonboard-settlement/internal/aws"
	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/config"
	"github.com/Artistsreach/freshonboard-settlement/internal/handlers"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handlers.RegisterReservationRoutes(r, cfg)
	handlers.RegisterWebhookRoutes(r, cfg)

	return r
}

func main() {
	var envCfg config.API
	if err := config.Parse(&envCfg); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		log.Fatalf("failed to init aws clients: %v", err)
	}

	cfg := handlers.HandlerConfig{
		DynamoDBClient:    clients.DynamoDB,
		Processor:         processor.NewClient(envCfg.ProcessorBaseURL, envCfg.ProcessorAPIKey),
		Clock:             clock.NewSystem(),
		CampaignsTable:    envCfg.CampaignsTable,
		ReservationsTable: envCfg.ReservationsTable,
		JWTSecret:         envCfg.JWTSecret,
		WebhookSecret:     envCfg.WebhookSecret,
	}

	r := setupRouter(cfg)

	// if environment variable RUN_LOCAL is set to "true", run local HTTP server for development.
	if envCfg.RunLocal {
		log.Printf("running local server on %s", envCfg.ListenAddr)
		if err := r.Run(envCfg.ListenAddr); err != nil {
			log.Fatalf("failed to run local server: %v", err)
		}
		return
	}

	// lambda adapter
	adapter := ginadapter.New(r)

	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		// the adapter handles proxying; use adapter.ProxyWithContext for proper context propagation
		return adapter.ProxyWithContext(ctx, req)
	})
}

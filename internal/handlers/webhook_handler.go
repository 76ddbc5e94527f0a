package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Artistsreach/freshonboard-settlement/internal/reconcile"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
	"github.com/Artistsreach/freshonboard-settlement/internal/webhooks"
)

// RegisterWebhookRoutes registers the processor callback endpoint.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	reservationStore := reservations.NewStore(cfg.DynamoDBClient, cfg.ReservationsTable, cfg.CampaignsTable)
	reconciler := reconcile.New(reservationStore)
	ingestor := webhooks.NewIngestor(cfg.WebhookSecret, reconciler, cfg.Clock)

	r.POST("/webhooks/processor", ingestor.GinHandler)
}

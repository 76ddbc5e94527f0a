package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Artistsreach/freshonboard-settlement/internal/auth"
	"github.com/Artistsreach/freshonboard-settlement/internal/aws"
	"github.com/Artistsreach/freshonboard-settlement/internal/campaigns"
	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
	"github.com/Artistsreach/freshonboard-settlement/internal/processor"
	"github.com/Artistsreach/freshonboard-settlement/internal/reservations"
	"github.com/Artistsreach/freshonboard-settlement/internal/reserve"
	"github.com/Artistsreach/freshonboard-settlement/internal/validation"
)

// HandlerConfig groups dependencies for the API routes.
type HandlerConfig struct {
	DynamoDBClient    aws.DynamoDBAPI
	Processor         processor.API
	Clock             clock.Clock
	CampaignsTable    string
	ReservationsTable string
	JWTSecret         string
	WebhookSecret     string
}

// RegisterReservationRoutes registers the buyer-facing reservation API.
func RegisterReservationRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	campaignStore := campaigns.NewStore(cfg.DynamoDBClient, cfg.CampaignsTable)
	reservationStore := reservations.NewStore(cfg.DynamoDBClient, cfg.ReservationsTable, cfg.CampaignsTable)
	authorizer := reserve.New(campaignStore, reservationStore, cfg.Processor)

	r.POST("/reservations", auth.Middleware(cfg.JWTSecret), func(c *gin.Context) {
		ctx := c.Request.Context()

		buyerID, ok := auth.BuyerID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_buyer_identity"})
			return
		}

		var req validation.CreateReservationRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		result, err := authorizer.Create(ctx, reserve.Input{
			BuyerID:          buyerID,
			CampaignID:       req.CampaignID,
			Amount:           req.Amount,
			Currency:         req.Currency,
			PaymentMethodRef: req.PaymentMethodRef,
			ReturnURL:        req.ReturnURL,
			ReservationID:    req.ReservationID,
		})
		if err != nil {
			switch {
			case errors.Is(err, reserve.ErrCampaignNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "campaign_not_found"})
			case errors.Is(err, reserve.ErrCampaignClosed):
				c.JSON(http.StatusConflict, gin.H{"error": "campaign_closed"})
			default:
				var perr *processor.Error
				if errors.As(err, &perr) {
					c.JSON(http.StatusBadGateway, gin.H{"error": "hold_declined", "detail": perr.Message})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "reservation_failed", "detail": err.Error()})
			}
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"reservation_id":             result.ReservationID,
			"client_confirmation_secret": result.ClientConfirmationSecret,
		})
	})
}

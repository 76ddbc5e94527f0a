package webhooks

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Artistsreach/freshonboard-settlement/internal/clock"
)

// Ingestor is the webhook boundary: it verifies payload authenticity against the raw
// body, then dispatches by event kind. Authenticity failures never reach a handler.
type Ingestor struct {
	secret    string
	handler   Handler
	clk       clock.Clock
	tolerance time.Duration
}

// NewIngestor returns an Ingestor verifying with the shared signing secret.
func NewIngestor(secret string, handler Handler, clk clock.Clock) *Ingestor {
	return &Ingestor{
		secret:    secret,
		handler:   handler,
		clk:       clk,
		tolerance: DefaultTolerance,
	}
}

// GinHandler handles POST from the processor.
//
// Responses drive the processor's redelivery behavior: 400 on a bad signature (no
// retry, no state touched), 500 on a handler error (redeliver), 200 otherwise —
// including unrecognized kinds, which are logged and acknowledged to avoid
// redelivery storms.
func (i *Ingestor) GinHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read_body_failed"})
		return
	}

	if err := VerifySignature(body, c.GetHeader(SignatureHeader), i.secret, i.clk.Now(), i.tolerance); err != nil {
		log.Printf("[webhook] rejected: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
		return
	}

	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}

	handled, err := Dispatch(c.Request.Context(), i.handler, ev)
	if err != nil {
		// 5xx so the processor redelivers; handlers are idempotent under replay
		log.Printf("[webhook] handler error for event=%s type=%s: %v", ev.ID, ev.Type, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "handler_failed"})
		return
	}
	if !handled {
		log.Printf("[webhook] ignoring unrecognized event type=%q id=%s", ev.Type, ev.ID)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the closed set of processor webhook kinds this service understands.
// Adding a kind means adding a constant here, a ParseEventKind case, and a Handler
// method, so new kinds are a deliberate change rather than a stray string.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindAuthorizationSucceeded
	KindAuthorizationFailed
	KindAuthorizationCanceled
	KindAccountStatusChanged
	KindCheckoutCompleted
	KindSubscriptionInvoicePaid
)

// Wire values used by the processor.
const (
	kindAuthorizationSucceeded  = "authorization.succeeded"
	kindAuthorizationFailed     = "authorization.failed"
	kindAuthorizationCanceled   = "authorization.canceled"
	kindAccountStatusChanged    = "account.status_changed"
	kindCheckoutCompleted       = "checkout.completed"
	kindSubscriptionInvoicePaid = "subscription.invoice_paid"
)

// ParseEventKind maps a wire value onto the typed kind. Unrecognized values map to
// KindUnknown; the ingestor acknowledges those without dispatching.
func ParseEventKind(s string) EventKind {
	switch s {
	case kindAuthorizationSucceeded:
		return KindAuthorizationSucceeded
	case kindAuthorizationFailed:
		return KindAuthorizationFailed
	case kindAuthorizationCanceled:
		return KindAuthorizationCanceled
	case kindAccountStatusChanged:
		return KindAccountStatusChanged
	case kindCheckoutCompleted:
		return KindCheckoutCompleted
	case kindSubscriptionInvoicePaid:
		return KindSubscriptionInvoicePaid
	default:
		return KindUnknown
	}
}

func (k EventKind) String() string {
	switch k {
	case KindAuthorizationSucceeded:
		return kindAuthorizationSucceeded
	case KindAuthorizationFailed:
		return kindAuthorizationFailed
	case KindAuthorizationCanceled:
		return kindAuthorizationCanceled
	case KindAccountStatusChanged:
		return kindAccountStatusChanged
	case KindCheckoutCompleted:
		return kindCheckoutCompleted
	case KindSubscriptionInvoicePaid:
		return kindSubscriptionInvoicePaid
	default:
		return "unknown"
	}
}

// Event is the envelope the processor posts to the webhook endpoint.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// HoldEvent is the payload of the authorization.* kinds.
type HoldEvent struct {
	ID            string            `json:"id"`
	Status        string            `json:"status"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// ReservationID extracts the reservation reference the hold was tagged with at
// creation time. Empty for holds created outside this service.
func (h HoldEvent) ReservationID() string {
	return h.Metadata["reservation_id"]
}

// AccountEvent is the payload of account.status_changed.
type AccountEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CheckoutEvent is the payload of checkout.completed.
type CheckoutEvent struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id,omitempty"`
}

// InvoiceEvent is the payload of subscription.invoice_paid.
type InvoiceEvent struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
}

// Handler receives dispatched events. Every method must be safe under at-least-once,
// possibly out-of-order delivery of the same logical event.
type Handler interface {
	OnAuthorizationSucceeded(ctx context.Context, hold HoldEvent) error
	OnAuthorizationFailed(ctx context.Context, hold HoldEvent) error
	OnAuthorizationCanceled(ctx context.Context, hold HoldEvent) error
	OnAccountStatusChanged(ctx context.Context, account AccountEvent) error
	OnCheckoutCompleted(ctx context.Context, session CheckoutEvent) error
	OnSubscriptionInvoicePaid(ctx context.Context, invoice InvoiceEvent) error
}

// Dispatch decodes the event payload for its kind and forwards to the handler.
// (KindUnknown, false) is returned without any handler call.
func Dispatch(ctx context.Context, h Handler, ev Event) (handled bool, err error) {
	kind := ParseEventKind(ev.Type)
	switch kind {
	case KindAuthorizationSucceeded, KindAuthorizationFailed, KindAuthorizationCanceled:
		var hold HoldEvent
		if err := json.Unmarshal(ev.Data, &hold); err != nil {
			return true, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		switch kind {
		case KindAuthorizationSucceeded:
			return true, h.OnAuthorizationSucceeded(ctx, hold)
		case KindAuthorizationFailed:
			return true, h.OnAuthorizationFailed(ctx, hold)
		default:
			return true, h.OnAuthorizationCanceled(ctx, hold)
		}
	case KindAccountStatusChanged:
		var account AccountEvent
		if err := json.Unmarshal(ev.Data, &account); err != nil {
			return true, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return true, h.OnAccountStatusChanged(ctx, account)
	case KindCheckoutCompleted:
		var session CheckoutEvent
		if err := json.Unmarshal(ev.Data, &session); err != nil {
			return true, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return true, h.OnCheckoutCompleted(ctx, session)
	case KindSubscriptionInvoicePaid:
		var invoice InvoiceEvent
		if err := json.Unmarshal(ev.Data, &invoice); err != nil {
			return true, fmt.Errorf("decode %s payload: %w", ev.Type, err)
		}
		return true, h.OnSubscriptionInvoicePaid(ctx, invoice)
	default:
		return false, nil
	}
}

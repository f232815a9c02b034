package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aezzeldin/storefront-api/internal/clients"
	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/circuitbreaker"
	"github.com/aezzeldin/storefront-api/pkg/errors"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// AdminHandler delivers redemption and stats events to the admin service.
// Calls go through a circuit breaker so a down admin service fails fast and
// leaves messages in the outbox instead of hammering it.
type AdminHandler struct {
	client  *clients.AdminClient
	breaker *circuitbreaker.CircuitBreaker
	logger  logger.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(client *clients.AdminClient, logger logger.Logger) *AdminHandler {
	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	return &AdminHandler{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// Breaker exposes the underlying circuit breaker for admin endpoints
func (h *AdminHandler) Breaker() *circuitbreaker.CircuitBreaker {
	return h.breaker
}

// outboxEnvelope is the wire envelope of an outbox payload with the event
// data left raw for per-type decoding.
type outboxEnvelope struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// HandleMessage routes an outbox message to the matching admin service call
func (h *AdminHandler) HandleMessage(ctx context.Context, message *models.OutboxMessage) error {
	if !h.breaker.Allow() {
		return errors.NewTemporaryError("admin service circuit breaker is open")
	}

	var envelope outboxEnvelope

	if err := json.Unmarshal(message.Payload, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal outbox payload: %w", err)
	}

	var err error

	switch message.EventType {
	case models.EventRedemptionRecorded:
		err = h.deliverRedemption(ctx, &envelope)
	case models.EventAmbassadorStatsUpdated:
		err = h.deliverStatsUpdate(ctx, &envelope)
	default:
		return fmt.Errorf("admin handler cannot handle event type %s", message.EventType)
	}

	if err != nil {
		h.breaker.Failure()
		return err
	}

	h.breaker.Success()
	return nil
}

func (h *AdminHandler) deliverRedemption(ctx context.Context, envelope *outboxEnvelope) error {
	var event models.RedemptionEvent

	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal redemption event: %w", err)
	}

	return h.client.NotifyRedemption(ctx, &clients.RedemptionRequest{
		OrderID:        event.OrderID,
		Code:           event.Code,
		AmbassadorID:   event.AmbassadorID,
		CustomerEmail:  event.CustomerEmail,
		Subtotal:       event.Subtotal,
		DiscountAmount: event.DiscountAmount,
		OrderTotal:     event.TotalAmount,
		RedeemedAt:     event.RedeemedAt,
	})
}

func (h *AdminHandler) deliverStatsUpdate(ctx context.Context, envelope *outboxEnvelope) error {
	var event models.AmbassadorStatsEvent

	if err := json.Unmarshal(envelope.Data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal stats event: %w", err)
	}

	return h.client.UpdateAmbassadorStats(ctx, &clients.StatsUpdateRequest{
		AmbassadorID: event.AmbassadorID,
		OrderID:      event.OrderID,
		SaleAmount:   event.CommissionBase,
		Commission:   event.Commission,
	})
}

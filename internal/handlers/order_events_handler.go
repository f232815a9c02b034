package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Shopify/sarama"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/service"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

// OrderEventsHandler consumes order events from Kafka. Newly created orders
// are reconciled against inventory as they arrive; the claim flag makes the
// work safe to repeat if the same event is redelivered.
type OrderEventsHandler struct {
	inventoryService *service.InventoryService
	logger           logger.Logger
}

// NewOrderEventsHandler creates a new OrderEventsHandler
func NewOrderEventsHandler(inventoryService *service.InventoryService, logger logger.Logger) *OrderEventsHandler {
	return &OrderEventsHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// HandleMessage handles incoming order events from Kafka messages
func (h *OrderEventsHandler) HandleMessage(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var event models.OutboxMessageEvent

	if err := json.Unmarshal(msg.Value, &event); err != nil {
		h.logger.Error("failed to unmarshal message", "error", err)
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	h.logger.Info("Handling order event",
		"eventType", event.EventType,
		"eventId", event.EventID,
		"aggregateId", event.AggregateID,
		"occurredAt", event.OccurredAt,
	)

	switch event.EventType {
	case models.EventOrderCreated:
		return h.handleOrderCreated(ctx, event)
	case models.EventOrderStatusChanged:
		return h.handleOrderStatusChanged(event)
	default:
		h.logger.Warn("unknown event type", "eventType", event.EventType)
		return nil
	}
}

// handleOrderCreated reconciles the new order's items against stock
func (h *OrderEventsHandler) handleOrderCreated(ctx context.Context, event models.OutboxMessageEvent) error {
	result, err := h.inventoryService.ReconcileOrder(ctx, event.AggregateID)

	if err != nil {
		h.logger.Error("Failed to reconcile order from event",
			"error", err,
			"orderID", event.AggregateID,
			"eventID", event.EventID)
		return fmt.Errorf("failed to reconcile order %s: %w", event.AggregateID, err)
	}

	if result.AlreadyProcessed {
		h.logger.Info("Order event redelivered, inventory already reconciled",
			"orderID", event.AggregateID,
			"eventID", event.EventID)
		return nil
	}

	if result.FailedItems > 0 {
		h.logger.Warn("Order reconciled with item failures",
			"orderID", event.AggregateID,
			"failedItems", result.FailedItems)
	}

	return nil
}

// handleOrderStatusChanged records the transition for observability
func (h *OrderEventsHandler) handleOrderStatusChanged(event models.OutboxMessageEvent) error {
	data, ok := event.Data.(map[string]interface{})

	if !ok {
		h.logger.Error("Invalid event data format", "eventID", event.EventID)
		return fmt.Errorf("invalid event data format")
	}

	oldStatus, _ := data["old_status"].(string)
	newStatus, _ := data["new_status"].(string)

	h.logger.Info("Order status changed",
		"orderID", event.AggregateID,
		"oldStatus", oldStatus,
		"newStatus", newStatus)

	return nil
}

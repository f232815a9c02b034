package outbox

import (
	"context"
	"testing"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

func TestLoggingHandlerAcceptsAnyEventType(t *testing.T) {
	handler := NewLoggingHandler(logger.NewLogger("error"))

	order := models.NewOrder("Nour", "nour@example.com", "+20100", "", models.PaymentCashOnDelivery)
	message, err := models.NewOrderCreatedEvent(order)

	if err != nil {
		t.Fatalf("failed to build event: %v", err)
	}
	message.EventType = "some_future_event"

	if err := handler.HandleMessage(context.Background(), message); err != nil {
		t.Fatalf("expected logging handler to accept the message, got %v", err)
	}
}

func TestLoggingHandlerRejectsMalformedPayload(t *testing.T) {
	handler := NewLoggingHandler(logger.NewLogger("error"))

	message := &models.OutboxMessage{
		ID:        1,
		EventType: "order_created",
		Payload:   []byte("not json"),
	}

	if err := handler.HandleMessage(context.Background(), message); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

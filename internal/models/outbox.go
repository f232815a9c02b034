package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types delivered through the outbox. Redemption and stats events go
// to the admin service; order events go to the Kafka stream.
const (
	EventOrderCreated           = "order_created"
	EventOrderStatusChanged     = "order_status_changed"
	EventRedemptionRecorded     = "redemption_recorded"
	EventAmbassadorStatsUpdated = "ambassador_stats_updated"
)

// OutboxMessage is a locally persisted event awaiting delivery. It commits
// in the same transaction as the write it describes, so local durability
// never depends on remote availability.
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent represents the event data in the outbox message
type OutboxMessageEvent struct {
	EventType   string      `json:"event_type"`
	EventID     string      `json:"event_id"`
	AggregateID string      `json:"aggregate_id"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Data        interface{} `json:"data"`
}

// RedemptionEvent is the payload propagated to the admin service when a
// coupon is applied to a completed order.
type RedemptionEvent struct {
	Code           string          `json:"code"`
	OrderID        string          `json:"order_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CustomerEmail  string          `json:"customer_email"`
	AmbassadorID   string          `json:"ambassador_id,omitempty"`
	RedeemedAt     time.Time       `json:"redeemed_at"`
}

// AmbassadorStatsEvent mirrors a ledger update toward the admin service
type AmbassadorStatsEvent struct {
	AmbassadorID   string          `json:"ambassador_id"`
	OrderID        string          `json:"order_id"`
	Commission     decimal.Decimal `json:"commission"`
	CommissionBase decimal.Decimal `json:"commission_base"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

func newOutboxMessage(aggregateType, aggregateID, eventType string, data interface{}) (*OutboxMessage, error) {
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	}

	payload, err := json.Marshal(event)

	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
		Status:        OutboxStatusPending,
	}, nil
}

// NewOrderCreatedEvent creates an order_created event for the Kafka stream
func NewOrderCreatedEvent(order *Order) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderCreated, order)
}

// NewOrderStatusChangedEvent creates an event for an order status change
func NewOrderStatusChangedEvent(order *Order, oldStatus string) (*OutboxMessage, error) {
	return newOutboxMessage("order", order.ID, EventOrderStatusChanged, map[string]interface{}{
		"order_id":   order.ID,
		"old_status": oldStatus,
		"new_status": order.Status,
	})
}

// NewRedemptionRecordedEvent creates the redemption event destined for the
// admin service.
func NewRedemptionRecordedEvent(order *Order, code string, ambassadorID string) (*OutboxMessage, error) {
	return newOutboxMessage("redemption", order.ID, EventRedemptionRecorded, RedemptionEvent{
		Code:           code,
		OrderID:        order.ID,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		CustomerEmail:  order.CustomerEmail,
		AmbassadorID:   ambassadorID,
		RedeemedAt:     time.Now().UTC(),
	})
}

// NewAmbassadorStatsUpdatedEvent mirrors a ledger increment to the admin service
func NewAmbassadorStatsUpdatedEvent(ambassadorID, orderID string, commission, commissionBase decimal.Decimal) (*OutboxMessage, error) {
	return newOutboxMessage("ambassador", ambassadorID, EventAmbassadorStatsUpdated, AmbassadorStatsEvent{
		AmbassadorID:   ambassadorID,
		OrderID:        orderID,
		Commission:     commission,
		CommissionBase: commissionBase,
		OccurredAt:     time.Now().UTC(),
	})
}

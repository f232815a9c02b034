package outbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aezzeldin/storefront-api/internal/clients"
	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

func TestAdminHandlerDeliversFullRedemption(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]interface{}
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path

		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	log := logger.NewLogger("error")
	handler := NewAdminHandler(clients.NewAdminClient(srv.URL, time.Second, log), log)

	order := models.NewOrder("Nour Hassan", "nour@example.com", "+201001234567", "", models.PaymentCashOnDelivery)
	order.Subtotal = decimal.NewFromInt(200)
	order.DiscountAmount = decimal.NewFromInt(20)
	order.TotalAmount = decimal.NewFromInt(200)

	message, err := models.NewRedemptionRecordedEvent(order, "RANIA20", "amb_1")

	if err != nil {
		t.Fatalf("failed to build redemption event: %v", err)
	}

	if err := handler.HandleMessage(context.Background(), message); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if gotPath != "/api/v1/redemptions" {
		t.Fatalf("expected POST to /api/v1/redemptions, got %q", gotPath)
	}

	// decimals marshal as JSON strings
	expected := map[string]string{
		"order_id":        order.ID,
		"code":            "RANIA20",
		"ambassador_id":   "amb_1",
		"customer_email":  "nour@example.com",
		"subtotal":        "200",
		"discount_amount": "20",
		"order_total":     "200",
	}

	for field, want := range expected {
		got, ok := gotBody[field].(string)

		if !ok {
			t.Errorf("field %q missing or not a string: %v", field, gotBody[field])
			continue
		}
		if got != want {
			t.Errorf("field %q = %q, want %q", field, got, want)
		}
	}

	if _, ok := gotBody["redeemed_at"]; !ok {
		t.Error("expected redeemed_at in the delivered redemption")
	}
}

func TestAdminHandlerDeliversStatsUpdate(t *testing.T) {
	var gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	log := logger.NewLogger("error")
	handler := NewAdminHandler(clients.NewAdminClient(srv.URL, time.Second, log), log)

	message, err := models.NewAmbassadorStatsUpdatedEvent("amb_1", "ord_1", decimal.NewFromInt(90), decimal.NewFromInt(180))

	if err != nil {
		t.Fatalf("failed to build stats event: %v", err)
	}

	if err := handler.HandleMessage(context.Background(), message); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	if gotPath != "/api/v1/ambassadors/amb_1/stats" {
		t.Fatalf("expected stats POST path, got %q", gotPath)
	}
}

package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/aezzeldin/storefront-api/internal/models"
	"github.com/aezzeldin/storefront-api/internal/repository"
	"github.com/aezzeldin/storefront-api/pkg/logger"
)

type fakeOrderStore struct {
	orders      map[string]*models.Order
	claimed     map[string]bool
	markedItems []int64
	unprocessed []*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders:  map[string]*models.Order{},
		claimed: map[string]bool{},
	}
}

func (f *fakeOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	order, ok := f.orders[id]

	if !ok {
		return nil, repository.ErrNotFound
	}

	return order, nil
}

func (f *fakeOrderStore) ClaimForInventory(ctx context.Context, id string) (bool, error) {
	if f.claimed[id] {
		return false, nil
	}

	f.claimed[id] = true
	return true, nil
}

func (f *fakeOrderStore) MarkItemInventoryUpdated(ctx context.Context, itemID int64) error {
	f.markedItems = append(f.markedItems, itemID)
	return nil
}

func (f *fakeOrderStore) ListUnprocessed(ctx context.Context) ([]*models.Order, error) {
	return f.unprocessed, nil
}

type variantKey struct {
	productID, size, color string
}

type fakeVariantStore struct {
	stock map[variantKey]int
}

func newFakeVariantStore() *fakeVariantStore {
	return &fakeVariantStore{stock: map[variantKey]int{}}
}

func (f *fakeVariantStore) GetInventory(ctx context.Context, id string) (*models.Inventory, error) {
	inventory := &models.Inventory{}
	found := false

	for key, qty := range f.stock {
		if key.productID != id {
			continue
		}
		found = true
		inventory.Total += qty
		inventory.Variants = append(inventory.Variants, models.InventoryVariant{
			Size: key.size, Color: key.color, Quantity: qty,
		})
	}

	if !found {
		return nil, repository.ErrNotFound
	}

	return inventory, nil
}

func (f *fakeVariantStore) ReplaceInventory(ctx context.Context, productID string, variants []models.InventoryVariant) (*models.Inventory, error) {
	for key := range f.stock {
		if key.productID == productID {
			delete(f.stock, key)
		}
	}

	for _, v := range variants {
		color := v.Color
		if color == "" {
			color = models.DefaultVariantColor
		}
		f.stock[variantKey{productID, v.Size, color}] += v.Quantity
	}

	return f.GetInventory(ctx, productID)
}

func (f *fakeVariantStore) DeductVariant(ctx context.Context, productID, size, color string, quantity int) (int, int, error) {
	key := variantKey{productID, size, color}
	before, ok := f.stock[key]

	if !ok {
		return 0, 0, repository.ErrNotFound
	}

	after := before - quantity
	if after < 0 {
		after = 0
	}
	f.stock[key] = after

	return before, after, nil
}

func testInventoryService(orders *fakeOrderStore, variants *fakeVariantStore) *InventoryService {
	return NewInventoryService(orders, variants, logger.NewLogger("error"))
}

func orderWithItems(id string, items ...*models.OrderItem) *models.Order {
	for i, item := range items {
		item.ID = int64(i + 1)
		item.OrderID = id
	}
	return &models.Order{ID: id, Items: items}
}

func TestReconcileOrderDeductsStock(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_1", "M", "Default"}] = 10

	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_1", Size: "M", Quantity: 4},
	)

	svc := testInventoryService(orders, variants)
	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Processed {
		t.Fatal("expected order to be processed")
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected 1 item result, got %d", len(result.Items))
	}

	item := result.Items[0]
	if item.Status != ItemStatusSuccess {
		t.Fatalf("expected status success, got %q", item.Status)
	}
	if item.QuantityBefore != 10 || item.QuantityAfter != 6 {
		t.Fatalf("expected 10 -> 6, got %d -> %d", item.QuantityBefore, item.QuantityAfter)
	}
	if len(orders.markedItems) != 1 {
		t.Fatalf("expected 1 item marked, got %d", len(orders.markedItems))
	}
}

func TestReconcileOrderIsIdempotent(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_1", "M", "Default"}] = 10

	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_1", Size: "M", Quantity: 4},
	)

	svc := testInventoryService(orders, variants)

	if _, err := svc.ReconcileOrder(context.Background(), "ord_1"); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if !result.AlreadyProcessed {
		t.Fatal("expected second reconcile to report already processed")
	}

	if got := variants.stock[variantKey{"prod_1", "M", "Default"}]; got != 6 {
		t.Fatalf("stock deducted twice: expected 6, got %d", got)
	}
}

func TestReconcileOrderFloorsAtZero(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_1", "L", "Black"}] = 4

	color := "Black"
	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_1", Size: "L", Color: &color, Quantity: 10},
	)

	svc := testInventoryService(orders, variants)
	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	item := result.Items[0]
	if item.QuantityBefore != 4 || item.QuantityAfter != 0 {
		t.Fatalf("expected 4 -> 0, got %d -> %d", item.QuantityBefore, item.QuantityAfter)
	}
}

func TestReconcileOrderIsolatesItemFailures(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_ok", "M", "Default"}] = 5

	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_missing", Size: "S", Quantity: 1},
		&models.OrderItem{ProductID: "prod_ok", Size: "M", Quantity: 2},
	)

	svc := testInventoryService(orders, variants)
	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.FailedItems != 1 {
		t.Fatalf("expected 1 failed item, got %d", result.FailedItems)
	}
	if result.Items[0].Status != ItemStatusError {
		t.Fatalf("expected first item failed, got %q", result.Items[0].Status)
	}
	if result.Items[1].Status != ItemStatusSuccess {
		t.Fatalf("expected second item updated, got %q", result.Items[1].Status)
	}
	if got := variants.stock[variantKey{"prod_ok", "M", "Default"}]; got != 3 {
		t.Fatalf("expected healthy item deducted to 3, got %d", got)
	}
}

func TestReconcileOrderSkipsDeductedItems(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_1", "M", "Default"}] = 5

	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_1", Size: "M", Quantity: 2, InventoryUpdated: true},
	)

	svc := testInventoryService(orders, variants)
	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Items[0].Status != ItemStatusSkipped {
		t.Fatalf("expected skipped, got %q", result.Items[0].Status)
	}
	if got := variants.stock[variantKey{"prod_1", "M", "Default"}]; got != 5 {
		t.Fatalf("stock should be untouched, got %d", got)
	}
}

func TestReconcileOrderDefaultsMissingColor(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()
	variants.stock[variantKey{"prod_1", "M", "Default"}] = 5

	// no color on the line item: matches the "Default" variant
	orders.orders["ord_1"] = orderWithItems("ord_1",
		&models.OrderItem{ProductID: "prod_1", Size: "M", Quantity: 1},
	)

	svc := testInventoryService(orders, variants)
	result, err := svc.ReconcileOrder(context.Background(), "ord_1")

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Items[0].Color != models.DefaultVariantColor {
		t.Fatalf("expected color %q, got %q", models.DefaultVariantColor, result.Items[0].Color)
	}
	if result.Items[0].Status != ItemStatusSuccess {
		t.Fatalf("expected updated, got %q", result.Items[0].Status)
	}
}

func TestSweepUnprocessed(t *testing.T) {
	orders := newFakeOrderStore()
	variants := newFakeVariantStore()

	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("ord_%d", i)
		variants.stock[variantKey{"prod_1", "M", "Default"}] = 100
		order := orderWithItems(id, &models.OrderItem{ProductID: "prod_1", Size: "M", Quantity: 1})
		orders.orders[id] = order
		orders.unprocessed = append(orders.unprocessed, order)
	}

	// ord_2 was already claimed by a concurrent reconciler
	orders.claimed["ord_2"] = true

	svc := testInventoryService(orders, variants)
	result, err := svc.SweepUnprocessed(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OrdersChecked != 3 {
		t.Fatalf("expected 3 checked, got %d", result.OrdersChecked)
	}
	if result.OrdersProcessed != 2 {
		t.Fatalf("expected 2 processed, got %d", result.OrdersProcessed)
	}
	if result.OrdersSkipped != 1 {
		t.Fatalf("expected 1 skipped, got %d", result.OrdersSkipped)
	}
}

func TestReduceProductInventoryValidation(t *testing.T) {
	svc := testInventoryService(newFakeOrderStore(), newFakeVariantStore())

	if _, err := svc.ReduceProductInventory(context.Background(), "prod_1", "", "", 1); err == nil {
		t.Fatal("expected error for missing size")
	}
	if _, err := svc.ReduceProductInventory(context.Background(), "prod_1", "M", "", 0); err == nil {
		t.Fatal("expected error for non-positive quantity")
	}
}

func TestItemResultStatusValues(t *testing.T) {
	// Clients branch on these strings, so they are part of the API contract.
	for got, want := range map[string]string{
		ItemStatusSuccess: "success",
		ItemStatusSkipped: "skipped",
		ItemStatusError:   "error",
	} {
		if got != want {
			t.Errorf("item status = %q, want %q", got, want)
		}
	}
}

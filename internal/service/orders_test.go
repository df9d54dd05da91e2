package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cosrent/internal/model"
)

func TestCreateOrderSnapshotsTotalsAndDecrementsStock(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	costume := seedProduct(t, db, "Sailor Moon dress", 150000, 300000, 5)
	wig := seedProduct(t, db, "Blonde wig", 50000, 100000, 3)

	start, end := rentalWindow()
	order, err := orders.Create(context.Background(), user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: costume.ID, Quantity: 2},
			{ProductID: wig.ID, Quantity: 1},
		},
		RentalStart:   start,
		RentalEnd:     end,
		RentalAddress: "12 Hang Bac, Hanoi",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if order.Status != model.OrderPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if !strings.HasPrefix(order.OrderNo, "ORD-") {
		t.Errorf("order no %q lacks ORD- prefix", order.OrderNo)
	}
	wantPrice := int64(2*150000 + 50000)
	wantDeposit := int64(2*300000 + 100000)
	if order.TotalPrice != wantPrice {
		t.Errorf("total price = %d, want %d", order.TotalPrice, wantPrice)
	}
	if order.TotalDeposit != wantDeposit {
		t.Errorf("total deposit = %d, want %d", order.TotalDeposit, wantDeposit)
	}
	if len(order.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(order.Items))
	}
	if order.Items[0].Price != 150000 || order.Items[0].Deposit != 300000 {
		t.Errorf("line snapshot = %d/%d, want 150000/300000", order.Items[0].Price, order.Items[0].Deposit)
	}

	if got := reloadProduct(t, db, costume.ID).Quantity; got != 3 {
		t.Errorf("costume quantity = %d, want 3", got)
	}
	if got := reloadProduct(t, db, wig.ID).Quantity; got != 2 {
		t.Errorf("wig quantity = %d, want 2", got)
	}
}

func TestCreateOrderInsufficientStockRollsBackAllReservations(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	costume := seedProduct(t, db, "Kimono", 100000, 0, 10)
	scarce := seedProduct(t, db, "Limited prop sword", 80000, 0, 1)

	start, end := rentalWindow()
	_, err := orders.Create(context.Background(), user.ID, CreateOrderInput{
		Items: []OrderItemInput{
			{ProductID: costume.ID, Quantity: 4},
			{ProductID: scarce.ID, Quantity: 2},
		},
		RentalStart: start,
		RentalEnd:   end,
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// The first line's reservation must have been rolled back with the tx.
	if got := reloadProduct(t, db, costume.ID).Quantity; got != 10 {
		t.Errorf("costume quantity = %d, want 10 after rollback", got)
	}
	if got := reloadProduct(t, db, scarce.ID).Quantity; got != 1 {
		t.Errorf("sword quantity = %d, want 1 after rollback", got)
	}

	var count int64
	db.Model(&model.Order{}).Count(&count)
	if count != 0 {
		t.Errorf("orders persisted = %d, want 0", count)
	}
}

func TestCreateOrderRejectsUnavailableProduct(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Retired costume", 100000, 0, 5)
	if err := db.Model(p).Update("is_available", false).Error; err != nil {
		t.Fatalf("disable product: %v", err)
	}

	start, end := rentalWindow()
	_, err := orders.Create(context.Background(), user.ID, CreateOrderInput{
		Items:       []OrderItemInput{{ProductID: p.ID, Quantity: 1}},
		RentalStart: start,
		RentalEnd:   end,
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("err = %v, want ErrProductUnavailable", err)
	}
}

func TestCreateOrderExhaustingStockClearsAvailability(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Last pair of boots", 60000, 0, 2)

	createOrderFor(t, orders, user.ID, p.ID, 2)

	got := reloadProduct(t, db, p.ID)
	if got.Quantity != 0 {
		t.Errorf("quantity = %d, want 0", got.Quantity)
	}
	if got.IsAvailable {
		t.Error("product still available at zero stock")
	}
}

func TestCancelRestoresStockAndAvailability(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Witch hat", 40000, 0, 1)

	order := createOrderFor(t, orders, user.ID, p.ID, 1)
	if got := reloadProduct(t, db, p.ID); got.Quantity != 0 || got.IsAvailable {
		t.Fatalf("precondition: quantity=%d available=%v", got.Quantity, got.IsAvailable)
	}

	cancelled, err := orders.Cancel(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != model.OrderCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	got := reloadProduct(t, db, p.ID)
	if got.Quantity != 1 {
		t.Errorf("quantity = %d, want 1 after release", got.Quantity)
	}
	if !got.IsAvailable {
		t.Error("product not re-enabled after release")
	}

	if _, err := orders.Cancel(context.Background(), order.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("second cancel err = %v, want ErrAlreadyCancelled", err)
	}
	// Stock must not be released twice.
	if got := reloadProduct(t, db, p.ID).Quantity; got != 1 {
		t.Errorf("quantity = %d after repeated cancel, want 1", got)
	}
}

func TestCancelReturnedOrderRejected(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Cape", 30000, 0, 3)

	order := createOrderFor(t, orders, user.ID, p.ID, 1)
	if err := db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("status", model.OrderReturned).Error; err != nil {
		t.Fatalf("force returned: %v", err)
	}

	if _, err := orders.Cancel(context.Background(), order.ID); !errors.Is(err, ErrTerminalState) {
		t.Fatalf("err = %v, want ErrTerminalState", err)
	}
}

func TestMarkConfirmedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Armor set", 200000, 500000, 2)
	order := createOrderFor(t, orders, user.ID, p.ID, 1)

	for i := 0; i < 2; i++ {
		if err := orders.MarkConfirmed(context.Background(), order.ID); err != nil {
			t.Fatalf("confirm attempt %d: %v", i+1, err)
		}
	}
	if got := reloadOrder(t, db, order.ID).Status; got != model.OrderConfirmed {
		t.Errorf("status = %s, want confirmed", got)
	}
}

func TestMarkRentedRequiresConfirmed(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Mask", 20000, 0, 2)
	order := createOrderFor(t, orders, user.ID, p.ID, 1)

	if _, err := orders.MarkRented(context.Background(), order.ID); !errors.Is(err, ErrInvalidOrderState) {
		t.Fatalf("rent from pending err = %v, want ErrInvalidOrderState", err)
	}

	if err := orders.MarkConfirmed(context.Background(), order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	rented, err := orders.MarkRented(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("rent: %v", err)
	}
	if rented.Status != model.OrderRented {
		t.Errorf("status = %s, want rented", rented.Status)
	}
	returned, err := orders.MarkReturned(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if returned.Status != model.OrderReturned {
		t.Errorf("status = %s, want returned", returned.Status)
	}
}

func TestOrderNumbersAreUnique(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)
	user := seedUser(t, db, "Linh")
	p := seedProduct(t, db, "Gloves", 10000, 0, 100)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		order := createOrderFor(t, orders, user.ID, p.ID, 1)
		if seen[order.OrderNo] {
			t.Fatalf("duplicate order no %q", order.OrderNo)
		}
		seen[order.OrderNo] = true
	}
}

func TestFindOneMissingOrder(t *testing.T) {
	db := newTestDB(t)
	orders := NewOrderService(db, testLogger(), nil)

	if _, err := orders.FindOne(context.Background(), 9999); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

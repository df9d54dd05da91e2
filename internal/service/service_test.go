package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cosrent/internal/model"
)

// newTestDB opens a throwaway in-memory database with the full schema. Each
// test gets its own named database so they cannot see each other's rows.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Comment{},
		&model.EventLog{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func seedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{FullName: name, Email: fmt.Sprintf("%s@example.com", uuid.NewString())}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price, deposit int64, quantity int) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:        name,
		Price:       price,
		Deposit:     deposit,
		Quantity:    quantity,
		IsAvailable: true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func rentalWindow() (time.Time, time.Time) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	return start, start.Add(72 * time.Hour)
}

// createOrderFor places an order of one line item through the service.
func createOrderFor(t *testing.T, orders *OrderService, userID, productID uint, qty int) *model.Order {
	t.Helper()
	start, end := rentalWindow()
	order, err := orders.Create(context.Background(), userID, CreateOrderInput{
		Items:       []OrderItemInput{{ProductID: productID, Quantity: qty}},
		RentalStart: start,
		RentalEnd:   end,
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func reloadProduct(t *testing.T, db *gorm.DB, id uint) *model.Product {
	t.Helper()
	var p model.Product
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("reload product %d: %v", id, err)
	}
	return &p
}

func reloadOrder(t *testing.T, db *gorm.DB, id uint) *model.Order {
	t.Helper()
	var o model.Order
	if err := db.First(&o, id).Error; err != nil {
		t.Fatalf("reload order %d: %v", id, err)
	}
	return &o
}

func testLogger() *zap.Logger { return zap.NewNop() }

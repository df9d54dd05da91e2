package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cosrent/internal/model"
	"cosrent/internal/queue"
)

// EventEmitter publishes order lifecycle events. Emission is best effort:
// services log failures and never roll back business state over them.
type EventEmitter interface {
	Emit(ctx context.Context, ev queue.OrderEvent) error
}

// OrderService owns the order lifecycle and the inventory ledger. All stock
// mutations go through reserveStock/releaseStock inside the same transaction
// as the order mutation that triggered them.
type OrderService struct {
	db     *gorm.DB
	log    *zap.Logger
	events EventEmitter
}

func NewOrderService(db *gorm.DB, log *zap.Logger, events EventEmitter) *OrderService {
	return &OrderService{db: db, log: log, events: events}
}

type OrderItemInput struct {
	ProductID uint
	Quantity  int
}

type CreateOrderInput struct {
	Items         []OrderItemInput
	RentalStart   time.Time
	RentalEnd     time.Time
	RentalAddress string
	Notes         string
}

// UpdateOrderInput is the administrative allow-listed patch. Only the named
// fields can change; nil means leave untouched.
type UpdateOrderInput struct {
	Status        *model.OrderStatus
	RentalStart   *time.Time
	RentalEnd     *time.Time
	RentalAddress *string
	Notes         *string
}

// Create validates and reserves stock for every requested item, snapshots
// unit price and deposit into order lines, and inserts the order — all in one
// transaction. Any failure rolls back every reservation.
func (s *OrderService) Create(ctx context.Context, userID uint, in CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("order: at least one item is required")
	}

	var orderID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var totalPrice, totalDeposit int64
		items := make([]model.OrderItem, 0, len(in.Items))

		for _, it := range in.Items {
			if it.Quantity <= 0 {
				return fmt.Errorf("order: invalid quantity %d for product %d", it.Quantity, it.ProductID)
			}
			var p model.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: id %d", ErrProductNotFound, it.ProductID)
				}
				return err
			}
			if err := reserveStock(tx, &p, it.Quantity); err != nil {
				return err
			}
			totalPrice += p.Price * int64(it.Quantity)
			totalDeposit += p.Deposit * int64(it.Quantity)
			items = append(items, model.OrderItem{
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
				Deposit:   p.Deposit,
			})
		}

		order := &model.Order{
			UserID:        userID,
			Status:        model.OrderPending,
			TotalPrice:    totalPrice,
			TotalDeposit:  totalDeposit,
			RentalStart:   in.RentalStart,
			RentalEnd:     in.RentalEnd,
			RentalAddress: in.RentalAddress,
			Notes:         in.Notes,
			Items:         items,
		}

		// Order numbers are timestamp+random; the unique index is the real
		// guarantee, with a bounded retry on the off chance of a collision.
		var lastErr error
		for attempt := 0; attempt < 3; attempt++ {
			order.OrderNo = newOrderNo()
			lastErr = tx.Create(order).Error
			if lastErr == nil {
				orderID = order.ID
				return nil
			}
			if !isDuplicateKey(lastErr) {
				return lastErr
			}
		}
		return lastErr
	})
	if err != nil {
		return nil, err
	}

	out, err := s.FindOne(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventOrderCreated, out)
	return out, nil
}

// Cancel releases stock for every line item and flips the order to cancelled,
// atomically. Cancelled and returned orders reject the call.
func (s *OrderService) Cancel(ctx context.Context, orderID uint) (*model.Order, error) {
	var cancelled *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
			}
			return err
		}
		switch {
		case order.Status == model.OrderCancelled:
			return ErrAlreadyCancelled
		case order.Status.Terminal():
			return ErrTerminalState
		}
		for _, it := range order.Items {
			if err := releaseStock(tx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		if err := tx.Model(&order).Update("status", model.OrderCancelled).Error; err != nil {
			return err
		}
		order.Status = model.OrderCancelled
		cancelled = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, queue.EventOrderCancelled, cancelled)
	return s.FindOne(ctx, orderID)
}

// MarkConfirmed forces the order to confirmed. The payment reconciler calls
// this when a payment completes; repeating the call is a no-op.
func (s *OrderService) MarkConfirmed(ctx context.Context, orderID uint) error {
	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return err
	}
	if order.Status == model.OrderConfirmed {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status <> ?", orderID, model.OrderConfirmed).
		Update("status", model.OrderConfirmed)
	if res.Error != nil {
		return res.Error
	}
	order.Status = model.OrderConfirmed
	s.emit(ctx, queue.EventOrderConfirmed, &order)
	return nil
}

// MarkRented records handover to the customer. Only confirmed orders qualify.
func (s *OrderService) MarkRented(ctx context.Context, orderID uint) (*model.Order, error) {
	return s.transition(ctx, orderID, model.OrderConfirmed, model.OrderRented)
}

// MarkReturned records the costume coming back. Only rented orders qualify.
func (s *OrderService) MarkReturned(ctx context.Context, orderID uint) (*model.Order, error) {
	return s.transition(ctx, orderID, model.OrderRented, model.OrderReturned)
}

func (s *OrderService) transition(ctx context.Context, orderID uint, from, to model.OrderStatus) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidOrderState, order.Status, to)
	}
	if err := s.db.WithContext(ctx).Model(&order).Update("status", to).Error; err != nil {
		return nil, err
	}
	return s.FindOne(ctx, orderID)
}

// Update applies the administrative patch field-by-field. No transition
// validation happens here on purpose; it exists for operator overrides.
func (s *OrderService) Update(ctx context.Context, orderID uint, in UpdateOrderInput) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	if in.Status != nil {
		order.Status = *in.Status
	}
	if in.RentalStart != nil {
		order.RentalStart = *in.RentalStart
	}
	if in.RentalEnd != nil {
		order.RentalEnd = *in.RentalEnd
	}
	if in.RentalAddress != nil {
		order.RentalAddress = *in.RentalAddress
	}
	if in.Notes != nil {
		order.Notes = *in.Notes
	}
	if err := s.db.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}
	return s.FindOne(ctx, orderID)
}

// FindOne returns the fully loaded order: items plus their product details.
func (s *OrderService) FindOne(ctx context.Context, orderID uint) (*model.Order, error) {
	var order model.Order
	err := s.db.WithContext(ctx).Preload("Items.Product").First(&order, orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
		}
		return nil, err
	}
	return &order, nil
}

// FindAll lists orders newest first, optionally filtered by owner.
func (s *OrderService) FindAll(ctx context.Context, userID *uint) ([]model.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items.Product").Order("created_at DESC")
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	var orders []model.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// Remove is the administrative hard delete. It bypasses the state machine and
// does not restore inventory.
func (s *OrderService) Remove(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: id %d", ErrOrderNotFound, orderID)
			}
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.Order{}, orderID).Error
	})
}

// reserveStock decrements available quantity with an optimistic guard: the
// UPDATE only applies while quantity covers the request, which serializes
// concurrent reservations without long-lived locks. Hitting zero clears the
// availability flag.
func reserveStock(tx *gorm.DB, p *model.Product, qty int) error {
	if !p.IsAvailable {
		return fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
	}
	res := tx.Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", p.ID, qty).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s has only %d left", ErrInsufficientStock, p.Name, p.Quantity)
	}
	return tx.Model(&model.Product{}).
		Where("id = ? AND quantity = 0", p.ID).
		UpdateColumn("is_available", false).Error
}

// releaseStock is the inverse: quantity added back and the availability flag
// re-enabled (idempotent). A missing product is skipped, not an error.
func releaseStock(tx *gorm.DB, productID uint, qty int) error {
	return tx.Model(&model.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"quantity":     gorm.Expr("quantity + ?", qty),
			"is_available": true,
		}).Error
}

func (s *OrderService) emit(ctx context.Context, evType string, o *model.Order) {
	if s.events == nil {
		return
	}
	ev := queue.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       evType,
		OrderID:    o.ID,
		OrderNo:    o.OrderNo,
		UserID:     o.UserID,
		Amount:     o.TotalPrice + o.TotalDeposit,
		Status:     string(o.Status),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Emit(ctx, ev); err != nil {
		s.log.Warn("emit order event",
			zap.String("type", evType),
			zap.String("order_no", o.OrderNo),
			zap.Error(err))
	}
}

func newOrderNo() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique") || strings.Contains(s, "Duplicate entry")
}

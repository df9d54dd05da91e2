package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cosrent/internal/config"
	"cosrent/internal/model"
	"cosrent/internal/queue"
	rediskey "cosrent/pkg/redis"
)

// QRDescriptor is the bank-QR payment descriptor stored in the payment's
// provider blob and returned to clients for display. The QR URL is a static
// construction; no provider API call is involved.
type QRDescriptor struct {
	QRCodeURL     string `json:"qr_code_url"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	Amount        int64  `json:"amount"`
	OrderNo       string `json:"order_no"`
	OrderInfo     string `json:"order_info"`
}

// PaymentView is a payment enriched with the decoded descriptor fields.
type PaymentView struct {
	model.Payment
	QRCodeURL     string `json:"qr_code_url,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	BankCode      string `json:"bank_code,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	OrderInfo     string `json:"order_info,omitempty"`
}

// CallbackPayload tolerates the provider's free-form webhook shape.
type CallbackPayload struct {
	OrderID        string      `json:"orderId"`
	Content        string      `json:"content"`
	TransferType   string      `json:"transferType"`
	TransferAmount int64       `json:"transferAmount"`
	ReferenceCode  string      `json:"referenceCode"`
	ID             json.Number `json:"id"`
	Status         string      `json:"status"`
	Amount         int64       `json:"amount"`
	TransactionID  string      `json:"transactionId"`
}

// PaymentService creates payment intents and reconciles webhook deliveries
// against them, confirming the order as a side effect of completion.
type PaymentService struct {
	db          *gorm.DB
	log         *zap.Logger
	orders      *OrderService
	cfg         config.PaymentConfig
	narrationRe *regexp.Regexp

	// rdb is optional: webhook fast-path dedup and the polling state cache.
	rdb      *rd.Client
	stateTTL time.Duration

	events EventEmitter
}

func NewPaymentService(db *gorm.DB, log *zap.Logger, orders *OrderService, cfg config.PaymentConfig, rdb *rd.Client, stateTTL time.Duration, events EventEmitter) *PaymentService {
	return &PaymentService{
		db:     db,
		log:    log,
		orders: orders,
		cfg:    cfg,
		narrationRe: regexp.MustCompile(
			`(?i)` + regexp.QuoteMeta(cfg.Marker) + `\s+THANH\s+TOAN\s+DON\s+HANG\s+([A-Za-z0-9-]+)`),
		rdb:      rdb,
		stateTTL: stateTTL,
		events:   events,
	}
}

// CreatePayment starts a payment attempt for a pending order. For the bank-QR
// method it builds the deterministic descriptor and stores it in the provider
// blob, with the payment's own id as the provider correlation id.
func (s *PaymentService) CreatePayment(ctx context.Context, orderID uint, method model.PaymentMethod) (*PaymentView, error) {
	order, err := s.orders.FindOne(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != model.OrderPending {
		return nil, fmt.Errorf("%w: order %s is %s, payment requires pending", ErrInvalidOrderState, order.OrderNo, order.Status)
	}

	amount := order.TotalPrice + order.TotalDeposit
	if amount <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	if method == "" {
		method = model.PaymentMethodBankQR
	}

	payment := &model.Payment{
		OrderID: order.ID,
		Method:  method,
		Status:  model.PaymentPending,
		Amount:  amount,
	}
	if err := s.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}

	if method == model.PaymentMethodBankQR {
		desc := s.buildDescriptor(order.OrderNo, amount)
		blob, err := json.Marshal(desc)
		if err != nil {
			// Descriptor construction failed: the attempt is dead, mark it so.
			s.db.WithContext(ctx).Model(payment).Update("status", model.PaymentFailed)
			return nil, fmt.Errorf("build qr descriptor: %w", err)
		}
		payment.ProviderResponse = string(blob)
		payment.ProviderOrderID = strconv.FormatUint(uint64(payment.ID), 10)
		if err := s.db.WithContext(ctx).Save(payment).Error; err != nil {
			return nil, err
		}
	}

	if s.rdb != nil {
		if err := rediskey.PutPaymentState(ctx, s.rdb, payment.ID, string(payment.Status), order.OrderNo, s.stateTTL); err != nil {
			s.log.Warn("cache payment state", zap.Uint("payment_id", payment.ID), zap.Error(err))
		}
	}

	s.log.Info("payment created",
		zap.Uint("payment_id", payment.ID),
		zap.String("order_no", order.OrderNo),
		zap.Int64("amount", amount),
		zap.String("method", string(method)))
	return s.view(payment), nil
}

// HandleCallback reconciles one webhook delivery. The completed transition is
// idempotent: redelivering the same payload neither errors nor re-confirms the
// order. Unmatched payloads come back as ErrPaymentNotFound, never a panic.
func (s *PaymentService) HandleCallback(ctx context.Context, payload CallbackPayload) (*model.Payment, error) {
	payment, err := s.resolvePayment(ctx, payload)
	if err != nil {
		s.log.Warn("callback did not match any payment",
			zap.String("orderId", payload.OrderID),
			zap.String("referenceCode", payload.ReferenceCode))
		return nil, err
	}

	txnID := firstNonEmpty(payload.TransactionID, payload.ReferenceCode, payload.ID.String())

	// Fast-path dedup; the conditional update below is the real guard.
	if s.rdb != nil && txnID != "" {
		seen, err := rediskey.CallbackSeen(ctx, s.rdb, txnID)
		if err != nil {
			s.log.Warn("callback dedup check", zap.Error(err))
		} else if seen {
			s.log.Info("callback already processed", zap.String("transaction_id", txnID))
			return payment, nil
		}
	}

	if amount := firstNonZero(payload.Amount, payload.TransferAmount); amount != 0 && amount != payment.Amount {
		// Trust the webhook over exact equality to tolerate bank rounding.
		s.log.Warn("callback amount mismatch",
			zap.Uint("payment_id", payment.ID),
			zap.Int64("webhook_amount", amount),
			zap.Int64("payment_amount", payment.Amount))
	}

	raw, _ := json.Marshal(payload)
	updates := map[string]any{"provider_response": string(raw)}
	if txnID != "" && payment.TransactionID == nil {
		updates["transaction_id"] = txnID
	}

	status, known := normalizeCallbackStatus(payload)
	switch {
	case known && status == model.PaymentCompleted:
		// Confirm the order before marking the payment completed: if the
		// confirmation fails, the payment stays pending and the provider's
		// redelivery retries the whole transition.
		if payment.Status != model.PaymentCompleted {
			if err := s.orders.MarkConfirmed(ctx, payment.OrderID); err != nil {
				return nil, fmt.Errorf("confirm order %d: %w", payment.OrderID, err)
			}
		}
		updates["status"] = model.PaymentCompleted
		res := s.db.WithContext(ctx).Model(&model.Payment{}).
			Where("id = ? AND status <> ?", payment.ID, model.PaymentCompleted).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			s.log.Info("payment already completed", zap.Uint("payment_id", payment.ID))
		} else {
			payment.Status = model.PaymentCompleted
			s.emitPayment(ctx, queue.EventPaymentCompleted, payment)
		}

	case known && status == model.PaymentFailed:
		updates["status"] = model.PaymentFailed
		// A failed notice never downgrades an already completed payment.
		res := s.db.WithContext(ctx).Model(&model.Payment{}).
			Where("id = ? AND status = ?", payment.ID, model.PaymentPending).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			payment.Status = model.PaymentFailed
			s.emitPayment(ctx, queue.EventPaymentFailed, payment)
		}

	default:
		s.log.Warn("unrecognized callback status, payment left unchanged",
			zap.Uint("payment_id", payment.ID),
			zap.String("status", payload.Status),
			zap.String("transfer_type", payload.TransferType))
		if err := s.db.WithContext(ctx).Model(&model.Payment{}).
			Where("id = ?", payment.ID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	if s.rdb != nil {
		if known && txnID != "" {
			if _, err := rediskey.MarkCallbackProcessed(ctx, s.rdb, txnID); err != nil {
				s.log.Warn("mark callback processed", zap.Error(err))
			}
		}
		if err := rediskey.PutPaymentState(ctx, s.rdb, payment.ID, string(payment.Status), payment.Order.OrderNo, s.stateTTL); err != nil {
			s.log.Warn("cache payment state", zap.Uint("payment_id", payment.ID), zap.Error(err))
		}
	}

	return s.findPayment(ctx, payment.ID)
}

// PaymentStatusView is the minimal polling answer for clients waiting on a
// webhook.
type PaymentStatusView struct {
	PaymentID uint   `json:"payment_id"`
	Status    string `json:"status"`
	OrderNo   string `json:"order_no"`
}

// Status answers status polls, serving from the Redis cache when a fresh
// entry exists so pollers waiting on the webhook skip the database.
func (s *PaymentService) Status(ctx context.Context, paymentID uint) (*PaymentStatusView, error) {
	if s.rdb != nil {
		st, found, err := rediskey.GetPaymentState(ctx, s.rdb, paymentID)
		if err != nil {
			s.log.Warn("read payment state cache", zap.Uint("payment_id", paymentID), zap.Error(err))
		} else if found {
			return &PaymentStatusView{PaymentID: paymentID, Status: st.Status, OrderNo: st.OrderNo}, nil
		}
	}
	p, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{PaymentID: p.ID, Status: string(p.Status), OrderNo: p.Order.OrderNo}, nil
}

// FindOne returns the payment with decoded descriptor fields for display.
func (s *PaymentService) FindOne(ctx context.Context, paymentID uint) (*PaymentView, error) {
	p, err := s.findPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	return s.view(p), nil
}

// FindByOrder lists an order's payment attempts, newest first.
func (s *PaymentService) FindByOrder(ctx context.Context, orderID uint) ([]PaymentView, error) {
	var payments []model.Payment
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	views := make([]PaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, *s.view(&payments[i]))
	}
	return views, nil
}

func (s *PaymentService) findPayment(ctx context.Context, paymentID uint) (*model.Payment, error) {
	var p model.Payment
	err := s.db.WithContext(ctx).Preload("Order").First(&p, paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrPaymentNotFound, paymentID)
		}
		return nil, err
	}
	return &p, nil
}

// resolvePayment matches a webhook payload to a payment in three tiers:
// correlation id, narration parse, then raw reference.
func (s *PaymentService) resolvePayment(ctx context.Context, payload CallbackPayload) (*model.Payment, error) {
	if payload.OrderID != "" {
		if p, ok := s.lookupByReference(ctx, payload.OrderID); ok {
			return p, nil
		}
	}
	if payload.Content != "" {
		if p, ok := s.lookupByNarration(ctx, payload.Content); ok {
			return p, nil
		}
	}
	for _, ref := range []string{payload.ReferenceCode, payload.ID.String()} {
		if ref == "" {
			continue
		}
		if p, ok := s.lookupByReference(ctx, ref); ok {
			return p, nil
		}
	}
	return nil, ErrPaymentNotFound
}

// lookupByReference tries the value as a provider correlation id first, then
// as the payment's own primary key.
func (s *PaymentService) lookupByReference(ctx context.Context, ref string) (*model.Payment, bool) {
	var p model.Payment
	err := s.db.WithContext(ctx).Preload("Order").
		Where("provider_order_id = ?", ref).
		First(&p).Error
	if err == nil {
		return &p, true
	}
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		if err := s.db.WithContext(ctx).Preload("Order").First(&p, uint(id)).Error; err == nil {
			return &p, true
		}
	}
	return nil, false
}

// lookupByNarration extracts the order-number fragment after the marker token
// and matches it exactly against stored order numbers, both sides normalized
// by stripping separators and upper-casing. Exact-after-normalization is
// deliberate: substring matching can cross-match similarly prefixed orders.
func (s *PaymentService) lookupByNarration(ctx context.Context, content string) (*model.Payment, bool) {
	m := s.narrationRe.FindStringSubmatch(content)
	if m == nil {
		return nil, false
	}
	frag := normalizeOrderNo(m[1])

	var order model.Order
	err := s.db.WithContext(ctx).
		Where("REPLACE(UPPER(order_no), '-', '') = ?", frag).
		First(&order).Error
	if err != nil {
		return nil, false
	}

	var p model.Payment
	err = s.db.WithContext(ctx).Preload("Order").
		Where("order_id = ?", order.ID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, false
	}
	return &p, true
}

func (s *PaymentService) buildDescriptor(orderNo string, amount int64) QRDescriptor {
	orderInfo := fmt.Sprintf("%s THANH TOAN DON HANG %s", s.cfg.Marker, orderNo)
	qrURL := fmt.Sprintf("%s/img?acc=%s&bank=%s&amount=%d&des=%s&template=%s",
		s.cfg.QRBaseURL, s.cfg.AccountNo, s.cfg.BankCode, amount,
		url.QueryEscape(orderInfo), s.cfg.Template)
	return QRDescriptor{
		QRCodeURL:     qrURL,
		AccountNumber: s.cfg.AccountNo,
		BankCode:      s.cfg.BankCode,
		BankName:      s.cfg.BankName,
		AccountName:   s.cfg.AccountName,
		Amount:        amount,
		OrderNo:       orderNo,
		OrderInfo:     orderInfo,
	}
}

// view decodes the stored descriptor into display fields. Once a webhook has
// overwritten the blob, or the blob is malformed, fields degrade to empty.
func (s *PaymentService) view(p *model.Payment) *PaymentView {
	v := &PaymentView{Payment: *p}
	if p.ProviderResponse == "" {
		return v
	}
	var d QRDescriptor
	if err := json.Unmarshal([]byte(p.ProviderResponse), &d); err != nil {
		s.log.Warn("malformed provider response blob", zap.Uint("payment_id", p.ID), zap.Error(err))
		return v
	}
	v.QRCodeURL = d.QRCodeURL
	v.AccountNumber = d.AccountNumber
	v.BankCode = d.BankCode
	v.BankName = d.BankName
	v.AccountName = d.AccountName
	v.OrderInfo = d.OrderInfo
	return v
}

func (s *PaymentService) emitPayment(ctx context.Context, evType string, p *model.Payment) {
	if s.events == nil {
		return
	}
	ev := queue.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       evType,
		OrderID:    p.OrderID,
		OrderNo:    p.Order.OrderNo,
		UserID:     p.Order.UserID,
		Amount:     p.Amount,
		Status:     string(p.Status),
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.Emit(ctx, ev); err != nil {
		s.log.Warn("emit payment event", zap.String("type", evType), zap.Uint("payment_id", p.ID), zap.Error(err))
	}
}

// normalizeCallbackStatus maps the payload onto a payment status. known=false
// means the delivery carries no recognizable outcome and must not change
// anything.
func normalizeCallbackStatus(p CallbackPayload) (model.PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "success", "completed", "paid":
		return model.PaymentCompleted, true
	case "failed", "cancelled":
		return model.PaymentFailed, true
	case "":
		// No explicit status: an inbound transfer with a positive amount
		// counts as money received.
		if strings.EqualFold(p.TransferType, "in") && p.TransferAmount > 0 {
			return model.PaymentCompleted, true
		}
		return "", false
	default:
		return "", false
	}
}

func normalizeOrderNo(s string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "_", "").Replace(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

package model

import "time"

type PaymentMethod string

const (
	PaymentMethodBankQR PaymentMethod = "bank_qr"
	PaymentMethodCash   PaymentMethod = "cash"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Payment is one attempt to collect funds for an order. An order can carry
// several attempts; only the reconciler mutates rows after creation.
type Payment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID uint          `gorm:"not null;index" json:"order_id"`
	Method  PaymentMethod `gorm:"size:16;not null;default:'bank_qr'" json:"method"`
	Status  PaymentStatus `gorm:"size:16;not null;default:'pending';index" json:"status"`
	Amount  int64         `gorm:"not null" json:"amount"`

	// TransactionID is the provider-side transaction reference; unique when
	// present, hence the pointer.
	TransactionID *string `gorm:"size:64;uniqueIndex" json:"transaction_id,omitempty"`
	// ProviderOrderID is the correlation id handed to the provider. It is set
	// to the payment's own id so webhooks can be matched without narration
	// parsing.
	ProviderOrderID string `gorm:"size:64;index" json:"provider_order_id"`
	// ProviderResponse holds the QR descriptor at creation time and is
	// overwritten with the raw webhook payload once one arrives.
	ProviderResponse string `gorm:"type:text" json:"-"`

	Order Order `gorm:"foreignKey:OrderID" json:"-"`
}

func (Payment) TableName() string { return "payments" }

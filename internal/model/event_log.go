package model

import "time"

// EventLog is the audit row the worker writes for every order lifecycle event
// consumed from Kafka. EventID is unique so redelivered messages collapse into
// a single row.
type EventLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EventID   string `gorm:"size:64;uniqueIndex;not null" json:"event_id"`
	EventType string `gorm:"size:32;not null;index" json:"event_type"`
	OrderNo   string `gorm:"size:64;index" json:"order_no"`
	Payload   string `gorm:"type:text" json:"payload"`
}

func (EventLog) TableName() string { return "event_log" }

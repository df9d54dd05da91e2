package queue

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cosrent/internal/model"
)

// Consumer persists every order lifecycle event into the event_log audit
// table. The unique event_id index makes redelivered messages collapse into a
// single row.
type Consumer struct {
	r   *kafka.Reader
	db  *gorm.DB
	log *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, db *gorm.DB, log *zap.Logger) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		db:  db,
		log: log,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			return // ctx cancelled or connection gone
		}

		var ev OrderEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			c.log.Warn("consumer unmarshal", zap.Error(err))
			continue
		}
		if err := ev.Validate(); err != nil {
			c.log.Warn("consumer invalid event", zap.Error(err))
			continue
		}

		rec := &model.EventLog{
			EventID:   ev.EventID,
			EventType: ev.Type,
			OrderNo:   ev.OrderNo,
			Payload:   string(m.Value),
		}
		if err := c.db.Create(rec).Error; err != nil {
			// Idempotency: a redelivered event hits the UNIQUE index,
			// which counts as success.
			if errorsLikeUnique(err) {
				continue
			}
			c.log.Warn("consumer db create", zap.Error(err))
			continue
		}
	}
}

func errorsLikeUnique(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "UNIQUE") || strings.Contains(s, "unique")
}

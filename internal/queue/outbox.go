package queue

import (
	"context"
	"strconv"

	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Outbox appends order lifecycle events to a Redis Stream on the request path.
// The relay drains the stream into Kafka asynchronously, so a slow or down
// broker never blocks an order or payment transaction.
type Outbox struct {
	rdb    *rd.Client
	stream string
	log    *zap.Logger
}

func NewOutbox(rdb *rd.Client, stream string, log *zap.Logger) *Outbox {
	return &Outbox{rdb: rdb, stream: stream, log: log}
}

// Emit appends one event. Failures are returned so callers can decide whether
// to log and continue; business transactions never roll back on emit errors.
func (o *Outbox) Emit(ctx context.Context, ev OrderEvent) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id":    ev.EventID,
			"type":        ev.Type,
			"order_id":    strconv.FormatUint(uint64(ev.OrderID), 10),
			"order_no":    ev.OrderNo,
			"user_id":     strconv.FormatUint(uint64(ev.UserID), 10),
			"amount":      strconv.FormatInt(ev.Amount, 10),
			"status":      ev.Status,
			"occurred_at": strconv.FormatInt(ev.OccurredAt.Unix(), 10),
		},
	}).Err()
}

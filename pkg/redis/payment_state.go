package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// PaymentState is the cached view clients poll while waiting for the webhook.
type PaymentState struct {
	PaymentID uint
	Status    string
	OrderNo   string
}

// GetPaymentState fetches the cached state. found=false means no cache entry;
// callers fall back to the database.
func GetPaymentState(ctx context.Context, rdb *rd.Client, paymentID uint) (PaymentState, bool, error) {
	m, err := rdb.HGetAll(ctx, PaymentStateKey(paymentID)).Result()
	if err != nil {
		return PaymentState{}, false, err
	}
	if len(m) == 0 {
		return PaymentState{}, false, nil
	}
	return PaymentState{
		PaymentID: paymentID,
		Status:    m["status"],
		OrderNo:   m["order_no"],
	}, true, nil
}

// PutPaymentState updates the cache and refreshes the TTL.
func PutPaymentState(ctx context.Context, rdb *rd.Client, paymentID uint, status, orderNo string, ttl time.Duration) error {
	key := PaymentStateKey(paymentID)
	pipe := rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"status", status,
		"order_no", orderNo,
	)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

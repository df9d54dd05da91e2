package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// callbackLockTTL keeps processed transaction ids around long enough to cover
// any realistic provider redelivery window.
const callbackLockTTL = 7 * 24 * time.Hour

// CallbackSeen reports whether a provider transaction id has already been
// reconciled. This is a fast path only; the conditional status update in the
// reconciler is the actual idempotency guarantee.
func CallbackSeen(ctx context.Context, rdb *rd.Client, transactionID string) (bool, error) {
	n, err := rdb.Exists(ctx, CallbackLockKey(transactionID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCallbackProcessed records a transaction id after successful
// reconciliation. First call returns true, repeats return false.
func MarkCallbackProcessed(ctx context.Context, rdb *rd.Client, transactionID string) (bool, error) {
	return rdb.SetNX(ctx, CallbackLockKey(transactionID), "1", callbackLockTTL).Result()
}

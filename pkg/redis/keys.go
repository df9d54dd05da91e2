package redis

import "fmt"

// PaymentStateKey stores the cached reconciliation state of a payment.
func PaymentStateKey(paymentID uint) string {
	return fmt.Sprintf("cosrent:payment:status:%d", paymentID)
}

// CallbackLockKey marks a provider transaction id as already processed.
func CallbackLockKey(transactionID string) string {
	return fmt.Sprintf("cosrent:callback:processed:%s", transactionID)
}

// RateLimitUserKey throttles order creation per authenticated user.
func RateLimitUserKey(userID uint) string {
	return fmt.Sprintf("rate_limit:orders:user:%d", userID)
}

// RateLimitIPKey is the fallback when no user id is attached to the request.
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:orders:ip:%s", ip)
}

package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cosrent/internal/config"
	"cosrent/internal/middleware"
	"cosrent/internal/service"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	DB       *gorm.DB
	Redis    *rd.Client
	Orders   *service.OrderService
	Payments *service.PaymentService
	Comments *service.CommentService
	Log      *zap.Logger
}

// Setup registers all HTTP routes.
func Setup(r *gin.Engine, d Deps, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})

	api := r.Group("/api")

	// Products: the minimal management surface the inventory ledger needs.
	api.GET("/products", listProducts(d.DB))
	api.POST("/products", createProduct(d.DB))
	api.GET("/products/:id", getProduct(d.DB))

	// Orders
	api.POST("/orders", middleware.RedisRateLimit(d.Redis, cfg.OrderRateLimit, cfg.OrderRateWindow), createOrder(d))
	api.GET("/orders", listOrders(d))
	api.GET("/orders/:id", getOrder(d))
	api.POST("/orders/:id/cancel", cancelOrder(d))
	api.POST("/orders/:id/rent", markOrderRented(d))
	api.POST("/orders/:id/return", markOrderReturned(d))
	api.PATCH("/orders/:id", updateOrder(d))
	api.DELETE("/orders/:id", removeOrder(d))

	// Payments
	api.POST("/payments", createPayment(d))
	api.POST("/payments/callback", paymentCallback(d))
	api.GET("/payments/:id", getPayment(d))
	api.GET("/payments/:id/status", paymentStatus(d))
	api.GET("/payments/order/:orderId", listOrderPayments(d))

	// Comments
	api.POST("/comments", createComment(d))
	api.GET("/comments/product/:productId", listProductComments(d))
	api.GET("/comments/product/:productId/rating", productRating(d))
	api.GET("/comments/order/:orderId", listOrderComments(d))
	api.GET("/comments/user", listOwnComments(d))
	api.PATCH("/comments/:id", updateComment(d))
	api.DELETE("/comments/:id", removeComment(d))
}

// currentUserID reads the authenticated user from the X-User-ID header; the
// JWT layer in front of this service resolves tokens into that header.
func currentUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.GetHeader("X-User-ID"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"code": 401, "msg": "missing or invalid X-User-ID"})
		return 0, false
	}
	return uint(id), true
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// respondError maps the service error taxonomy onto HTTP codes.
func respondError(c *gin.Context, err error) {
	var code int
	switch {
	case errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrPaymentNotFound),
		errors.Is(err, service.ErrCommentNotFound),
		errors.Is(err, service.ErrUserNotFound):
		code = http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		code = http.StatusForbidden
	case errors.Is(err, service.ErrAlreadyCancelled),
		errors.Is(err, service.ErrTerminalState),
		errors.Is(err, service.ErrInvalidOrderState),
		errors.Is(err, service.ErrInsufficientStock),
		errors.Is(err, service.ErrProductUnavailable),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrCommentOrderState),
		errors.Is(err, service.ErrProductNotInOrder),
		errors.Is(err, service.ErrDuplicateReview),
		errors.Is(err, service.ErrInvalidRating):
		code = http.StatusBadRequest
	default:
		code = http.StatusInternalServerError
	}
	c.JSON(code, gin.H{"code": code, "msg": err.Error()})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cosrent/internal/model"
	"cosrent/internal/service"
)

func createPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, authed := currentUserID(c); !authed {
			return
		}

		var req struct {
			OrderID uint   `json:"order_id" binding:"required,min=1"`
			Method  string `json:"method" binding:"omitempty,oneof=bank_qr cash"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		payment, err := d.Payments.CreatePayment(c.Request.Context(), req.OrderID, model.PaymentMethod(req.Method))
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, payment)
	}
}

// paymentCallback receives the provider webhook. The payload is free-form;
// unmatched deliveries answer 404 so the provider's redelivery kicks in.
func paymentCallback(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload service.CallbackPayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		payment, err := d.Payments.HandleCallback(c.Request.Context(), payload)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, payment)
	}
}

func getPayment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		payment, err := d.Payments.FindOne(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, payment)
	}
}

// paymentStatus is the lightweight polling endpoint clients hit while waiting
// for the bank webhook.
func paymentStatus(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		status, err := d.Payments.Status(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, status)
	}
}

func listOrderPayments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, valid := paramID(c, "orderId")
		if !valid {
			return
		}
		payments, err := d.Payments.FindByOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, payments)
	}
}

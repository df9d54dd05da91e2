package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cosrent/internal/model"
	"cosrent/internal/service"
)

type orderItemReq struct {
	ProductID uint `json:"product_id" binding:"required,min=1"`
	Quantity  int  `json:"quantity" binding:"required,min=1"`
}

func createOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}

		var req struct {
			Items         []orderItemReq `json:"items" binding:"required,min=1,dive"`
			RentalStart   string         `json:"rental_start" binding:"required"`
			RentalEnd     string         `json:"rental_end" binding:"required"`
			RentalAddress string         `json:"rental_address"`
			Notes         string         `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		start, err := time.Parse(time.RFC3339, req.RentalStart)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "rental_start must be RFC3339"})
			return
		}
		end, err := time.Parse(time.RFC3339, req.RentalEnd)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "rental_end must be RFC3339"})
			return
		}
		if !end.After(start) {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "rental_end must be after rental_start"})
			return
		}

		in := service.CreateOrderInput{
			RentalStart:   start,
			RentalEnd:     end,
			RentalAddress: req.RentalAddress,
			Notes:         req.Notes,
		}
		for _, it := range req.Items {
			in.Items = append(in.Items, service.OrderItemInput{ProductID: it.ProductID, Quantity: it.Quantity})
		}

		order, err := d.Orders.Create(c.Request.Context(), userID, in)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

func listOrders(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}
		orders, err := d.Orders.FindAll(c.Request.Context(), &userID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, orders)
	}
}

func getOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		order, err := d.Orders.FindOne(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

func cancelOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		order, err := d.Orders.Cancel(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

func markOrderRented(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		order, err := d.Orders.MarkRented(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

func markOrderReturned(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		order, err := d.Orders.MarkReturned(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

// updateOrder is the administrative patch: only the allow-listed fields can
// change, each applied explicitly.
func updateOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}

		var req struct {
			Status        *string `json:"status" binding:"omitempty,oneof=pending confirmed rented returned cancelled"`
			RentalStart   *string `json:"rental_start"`
			RentalEnd     *string `json:"rental_end"`
			RentalAddress *string `json:"rental_address"`
			Notes         *string `json:"notes"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		var in service.UpdateOrderInput
		if req.Status != nil {
			st := model.OrderStatus(*req.Status)
			in.Status = &st
		}
		if req.RentalStart != nil {
			t, err := time.Parse(time.RFC3339, *req.RentalStart)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "rental_start must be RFC3339"})
				return
			}
			in.RentalStart = &t
		}
		if req.RentalEnd != nil {
			t, err := time.Parse(time.RFC3339, *req.RentalEnd)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "rental_end must be RFC3339"})
				return
			}
			in.RentalEnd = &t
		}
		in.RentalAddress = req.RentalAddress
		in.Notes = req.Notes

		order, err := d.Orders.Update(c.Request.Context(), id, in)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, order)
	}
}

func removeOrder(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		if err := d.Orders.Remove(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		ok(c, gin.H{"deleted": id})
	}
}

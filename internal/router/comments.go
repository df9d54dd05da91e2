package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cosrent/internal/service"
)

func createComment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}

		var req struct {
			OrderID   uint     `json:"order_id" binding:"required,min=1"`
			ProductID uint     `json:"product_id" binding:"required,min=1"`
			Rating    int      `json:"rating" binding:"required"`
			Content   string   `json:"content"`
			ImageURLs []string `json:"image_urls"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		comment, err := d.Comments.Create(c.Request.Context(), userID, service.CreateCommentInput{
			OrderID:   req.OrderID,
			ProductID: req.ProductID,
			Rating:    req.Rating,
			Content:   req.Content,
			ImageURLs: req.ImageURLs,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, comment)
	}
}

func listProductComments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, valid := paramID(c, "productId")
		if !valid {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

		comments, total, err := d.Comments.FindByProduct(c.Request.Context(), productID, page, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, gin.H{
			"comments": comments,
			"total":    total,
			"page":     page,
			"limit":    limit,
		})
	}
}

// productRating exposes both the raw mean and the floored value shown on
// product cards.
func productRating(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		productID, valid := paramID(c, "productId")
		if !valid {
			return
		}
		avg, err := d.Comments.AverageRating(c.Request.Context(), productID)
		if err != nil {
			respondError(c, err)
			return
		}
		display, err := d.Comments.DisplayRating(c.Request.Context(), productID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, gin.H{
			"product_id":     productID,
			"average_rating": avg,
			"display_rating": display,
		})
	}
}

func listOrderComments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, valid := paramID(c, "orderId")
		if !valid {
			return
		}
		comments, err := d.Comments.FindByOrder(c.Request.Context(), orderID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, comments)
	}
}

func listOwnComments(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}
		comments, err := d.Comments.FindByUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, comments)
	}
}

func updateComment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}
		id, valid := paramID(c, "id")
		if !valid {
			return
		}

		var req struct {
			Content   *string  `json:"content"`
			Rating    *int     `json:"rating"`
			ImageURLs []string `json:"image_urls"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}

		comment, err := d.Comments.Update(c.Request.Context(), id, userID, service.UpdateCommentInput{
			Content:   req.Content,
			Rating:    req.Rating,
			ImageURLs: req.ImageURLs,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, comment)
	}
}

func removeComment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, authed := currentUserID(c)
		if !authed {
			return
		}
		id, valid := paramID(c, "id")
		if !valid {
			return
		}
		if err := d.Comments.Remove(c.Request.Context(), id, userID); err != nil {
			respondError(c, err)
			return
		}
		ok(c, gin.H{"deactivated": id})
	}
}

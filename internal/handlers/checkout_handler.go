package handlers

import (
	"net/http"
	"strings"

	"go-hospitality/internal/cart"
	"go-hospitality/internal/middleware"
	"go-hospitality/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IdempotencyHeader lets a client retry a checkout without creating a second order.
const IdempotencyHeader = "Idempotency-Key"

type CheckoutRequest struct {
	SessionID     string `json:"session_id" binding:"required,max=128"`
	PropertyID    string `json:"property_id" binding:"required,uuid"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=card cash"`
	DiscountCode  string `json:"discount_code" binding:"max=50"`
	GuestName     string `json:"guest_name" binding:"max=200"`
	GuestEmail    string `json:"guest_email" binding:"omitempty,email"`
	Notes         string `json:"notes" binding:"max=1000"`
}

// Checkout turns the guest's active cart into an order and starts payment.
// 201 for a new order, 200 when an Idempotency-Key replays an earlier one.
func (h *Handler) Checkout(c *gin.Context) {
	var input CheckoutRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	idemKey := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	if len(idemKey) > 255 {
		fail(c, http.StatusBadRequest, "Idempotency-Key is too long")
		return
	}

	res, err := h.orders.Checkout(c.Request.Context(), orders.CheckoutInput{
		Cart: cart.Key{
			SessionID:  strings.TrimSpace(input.SessionID),
			PropertyID: uuid.MustParse(input.PropertyID),
			TenantID:   middleware.TenantID(c),
		},
		DiscountCode:   input.DiscountCode,
		PaymentMethod:  input.PaymentMethod,
		IdempotencyKey: idemKey,
		GuestName:      input.GuestName,
		GuestEmail:     input.GuestEmail,
		Notes:          input.Notes,
	})
	if err != nil {
		h.handleError(c, err, "Checkout failed")
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respond(c, status, res)
}

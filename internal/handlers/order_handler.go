package handlers

import (
	"net/http"
	"strconv"

	"go-hospitality/internal/middleware"
	"go-hospitality/internal/orders"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// --- GET: /api/secure/orders?property_id=&status=&limit= ---
func (h *Handler) GetOrders(c *gin.Context) {
	var f orders.ListFilter
	if v := c.Query("property_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid property_id")
			return
		}
		f.PropertyID = &id
	}
	f.Status = c.Query("status")
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	list, err := h.orders.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		h.handleError(c, err, "Failed to fetch orders")
		return
	}
	respond(c, http.StatusOK, list)
}

func (h *Handler) GetOrder(c *gin.Context) {
	detail, err := h.orders.Get(c.Request.Context(), middleware.TenantID(c), c.Param("orderNumber"))
	if err != nil {
		h.handleError(c, err, "Failed to fetch order")
		return
	}
	respond(c, http.StatusOK, detail)
}

type CancelRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

func (h *Handler) CancelOrder(c *gin.Context) {
	var input CancelRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}

	order, err := h.orders.Cancel(c.Request.Context(), middleware.TenantID(c), c.Param("orderNumber"), input.Reason)
	if err != nil {
		h.handleError(c, err, "Failed to cancel order")
		return
	}
	respond(c, http.StatusOK, order)
}

type ConfirmPaymentRequest struct {
	Reference string `json:"reference" binding:"max=100"`
}

// ConfirmPayment records that the guest has paid: card authorised at the
// terminal or cash taken at the front desk.
func (h *Handler) ConfirmPayment(c *gin.Context) {
	paymentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid payment ID")
		return
	}
	var input ConfirmPaymentRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}
	}

	conf, err := h.payments.Confirm(c.Request.Context(), middleware.TenantID(c), paymentID, input.Reference)
	if err != nil {
		h.handleError(c, err, "Failed to confirm payment")
		return
	}
	respond(c, http.StatusOK, conf)
}

package handlers

import (
	"net/http"
	"time"

	"go-hospitality/internal/discount"
	"go-hospitality/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type DiscountRequest struct {
	PropertyID         string           `json:"property_id" binding:"required,uuid"`
	Code               string           `json:"code" binding:"required,max=50"`
	Type               string           `json:"type" binding:"required,oneof=percentage flat"`
	Value              decimal.Decimal  `json:"value"`
	MaxDiscountAmount  *decimal.Decimal `json:"max_discount_amount"`
	MinimumOrderAmount decimal.Decimal  `json:"minimum_order_amount"`
	ValidFrom          *time.Time       `json:"valid_from"`
	ValidUntil         *time.Time       `json:"valid_until"`
	UsageLimit         *int             `json:"usage_limit"`
}

func (h *Handler) CreateDiscount(c *gin.Context) {
	var input DiscountRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	prop, err := h.findProperty(ctx, middleware.TenantID(c), uuid.MustParse(input.PropertyID))
	if err != nil {
		h.handleError(c, err, "Failed to fetch property")
		return
	}

	d, err := h.discounts.Create(ctx, discount.CreateInput{
		Scope:              discount.Scope{PropertyID: prop.ID, TenantID: prop.TenantID},
		Code:               input.Code,
		Type:               input.Type,
		Value:              input.Value,
		MaxDiscountAmount:  input.MaxDiscountAmount,
		MinimumOrderAmount: input.MinimumOrderAmount,
		ValidFrom:          input.ValidFrom,
		ValidUntil:         input.ValidUntil,
		UsageLimit:         input.UsageLimit,
	})
	if err != nil {
		h.handleError(c, err, "Failed to create discount")
		return
	}
	respond(c, http.StatusCreated, d)
}

func (h *Handler) GetDiscounts(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Query("property_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "A valid property_id is required")
		return
	}

	list, err := h.discounts.List(c.Request.Context(), discount.Scope{PropertyID: propertyID, TenantID: middleware.TenantID(c)})
	if err != nil {
		h.handleError(c, err, "Failed to fetch discounts")
		return
	}
	respond(c, http.StatusOK, list)
}

type ValidateDiscountRequest struct {
	PropertyID string          `json:"property_id" binding:"required,uuid"`
	Code       string          `json:"code" binding:"required,max=50"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// ValidateDiscount tells the front desk what a code would take off before
// checkout, and why it would not apply. Nothing is redeemed.
func (h *Handler) ValidateDiscount(c *gin.Context) {
	var input ValidateDiscountRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	scope := discount.Scope{PropertyID: uuid.MustParse(input.PropertyID), TenantID: middleware.TenantID(c)}
	d, amount, reason, err := h.discounts.Validate(c.Request.Context(), input.Code, scope, input.Subtotal)
	if err != nil {
		h.handleError(c, err, "Failed to validate discount")
		return
	}

	data := gin.H{
		"valid":           reason == "" && amount.IsPositive(),
		"code":            d.Code,
		"type":            d.Type,
		"discount_amount": amount,
	}
	if reason != "" {
		data["reason"] = reason
	}
	respond(c, http.StatusOK, data)
}

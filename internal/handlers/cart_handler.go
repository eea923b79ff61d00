package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-hospitality/internal/cart"
	"go-hospitality/internal/middleware"
	"go-hospitality/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errUnknownItem = errors.New("item is not on the menu or not available")

type CartItemRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1,max=999"`
}

type CartRequest struct {
	SessionID  string            `json:"session_id" binding:"required,max=128"`
	PropertyID string            `json:"property_id" binding:"required,uuid"`
	Items      []CartItemRequest `json:"items" binding:"dive"`
}

// UpsertCart replaces the guest's cart with the given items, priced from the
// property's menu.
func (h *Handler) UpsertCart(c *gin.Context) {
	var input CartRequest
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

	items, err := h.priceItems(ctx, prop.ID, input.Items)
	if err != nil {
		h.handleError(c, err, "Failed to price cart")
		return
	}

	key := cart.Key{SessionID: strings.TrimSpace(input.SessionID), PropertyID: prop.ID, TenantID: prop.TenantID}
	stored, err := h.carts.Upsert(ctx, key, items, cart.ComputeTotals(items, prop.TaxRate, prop.ServiceChargeRate, prop.Currency))
	if err != nil {
		h.handleError(c, err, "Failed to save cart")
		return
	}
	respond(c, http.StatusOK, stored)
}

func (h *Handler) GetCart(c *gin.Context) {
	key, ok := cartKeyFromQuery(c)
	if !ok {
		return
	}
	stored, err := h.carts.Get(c.Request.Context(), key)
	if err != nil {
		h.handleError(c, err, "Failed to fetch cart")
		return
	}
	respond(c, http.StatusOK, stored)
}

func (h *Handler) ClearCart(c *gin.Context) {
	key, ok := cartKeyFromQuery(c)
	if !ok {
		return
	}
	if err := h.carts.Clear(c.Request.Context(), key); err != nil {
		h.handleError(c, err, "Failed to clear cart")
		return
	}
	respond(c, http.StatusOK, gin.H{"status": models.CartStatusCancelled})
}

func cartKeyFromQuery(c *gin.Context) (cart.Key, bool) {
	session := strings.TrimSpace(c.Query("session_id"))
	propertyID, err := uuid.Parse(c.Query("property_id"))
	if session == "" || err != nil {
		fail(c, http.StatusBadRequest, "session_id and a valid property_id are required")
		return cart.Key{}, false
	}
	return cart.Key{SessionID: session, PropertyID: propertyID, TenantID: middleware.TenantID(c)}, true
}

// priceItems turns requested SKUs into line items at current menu prices.
// Repeated SKUs are merged.
func (h *Handler) priceItems(ctx context.Context, propertyID uuid.UUID, req []CartItemRequest) ([]models.LineItem, error) {
	if len(req) == 0 {
		return []models.LineItem{}, nil
	}

	var order []string
	qty := make(map[string]int, len(req))
	for _, r := range req {
		sku := strings.ToUpper(strings.TrimSpace(r.SKU))
		if _, seen := qty[sku]; !seen {
			order = append(order, sku)
		}
		qty[sku] += r.Quantity
	}

	var menu []models.MenuItem
	err := h.db.WithContext(ctx).
		Where("property_id = ? AND sku IN ? AND is_available = ?", propertyID, order, true).
		Find(&menu).Error
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	bySKU := make(map[string]models.MenuItem, len(menu))
	for _, m := range menu {
		bySKU[m.SKU] = m
	}

	items := make([]models.LineItem, 0, len(order))
	for _, sku := range order {
		m, ok := bySKU[sku]
		if !ok {
			return nil, fmt.Errorf("%w: %s", errUnknownItem, sku)
		}
		items = append(items, models.LineItem{SKU: m.SKU, Name: m.Name, Quantity: qty[sku], UnitPrice: m.Price})
	}
	return items, nil
}

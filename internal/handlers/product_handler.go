package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-hospitality/internal/middleware"
	"go-hospitality/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	errPropertyNotFound = errors.New("property not found")
	errMenuItemNotFound = errors.New("menu item not found")
	errDuplicateSKU     = errors.New("a menu item with this sku already exists")
)

// --- Properties ---

type PropertyRequest struct {
	Name              string          `json:"name" binding:"required,max=200"`
	Currency          string          `json:"currency" binding:"required,len=3"`
	TaxRate           decimal.Decimal `json:"tax_rate"`
	ServiceChargeRate decimal.Decimal `json:"service_charge_rate"`
}

func (h *Handler) CreateProperty(c *gin.Context) {
	var input PropertyRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !validRate(input.TaxRate) || !validRate(input.ServiceChargeRate) {
		fail(c, http.StatusBadRequest, "tax_rate and service_charge_rate must be between 0 and 100")
		return
	}

	prop := models.Property{
		ID:                uuid.New(),
		TenantID:          middleware.TenantID(c),
		Name:              strings.TrimSpace(input.Name),
		Currency:          strings.ToUpper(input.Currency),
		TaxRate:           input.TaxRate,
		ServiceChargeRate: input.ServiceChargeRate,
	}
	if err := h.db.WithContext(c.Request.Context()).Create(&prop).Error; err != nil {
		h.handleError(c, err, "Failed to create property")
		return
	}
	respond(c, http.StatusCreated, prop)
}

func (h *Handler) GetProperties(c *gin.Context) {
	props := []models.Property{}
	err := h.db.WithContext(c.Request.Context()).
		Where("tenant_id = ?", middleware.TenantID(c)).
		Order("name").
		Find(&props).Error
	if err != nil {
		h.handleError(c, err, "Failed to fetch properties")
		return
	}
	respond(c, http.StatusOK, props)
}

func (h *Handler) GetProperty(c *gin.Context) {
	prop, ok := h.propertyParam(c)
	if !ok {
		return
	}

	var bank models.PropertyBankAccount
	err := h.db.WithContext(c.Request.Context()).Where("property_id = ?", prop.ID).First(&bank).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		h.handleError(c, err, "Failed to fetch bank account")
		return
	}

	data := gin.H{"property": prop}
	if err == nil {
		data["bank_account"] = bank
	}
	respond(c, http.StatusOK, data)
}

type BankAccountRequest struct {
	AccountHolder string `json:"account_holder" binding:"required,max=200"`
	BankName      string `json:"bank_name" binding:"required,max=100"`
	AccountNumber string `json:"account_number" binding:"required,numeric,min=6,max=34"`
	BranchCode    string `json:"branch_code" binding:"required,max=20"`
	AccountType   string `json:"account_type" binding:"required,oneof=cheque savings current"`
}

// PutBankAccount sets where the property's payouts go.
func (h *Handler) PutBankAccount(c *gin.Context) {
	prop, ok := h.propertyParam(c)
	if !ok {
		return
	}
	var input BankAccountRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var bank models.PropertyBankAccount
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("property_id = ?", prop.ID).First(&bank).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			bank = models.PropertyBankAccount{ID: uuid.New(), PropertyID: prop.ID, TenantID: prop.TenantID}
		}
		bank.AccountHolder = input.AccountHolder
		bank.BankName = input.BankName
		bank.AccountNumber = input.AccountNumber
		bank.BranchCode = input.BranchCode
		bank.AccountType = input.AccountType
		bank.IsActive = true
		return tx.Save(&bank).Error
	})
	if err != nil {
		h.handleError(c, err, "Failed to save bank account")
		return
	}
	respond(c, http.StatusOK, bank)
}

// --- Menu items: the catalog carts are priced from ---

func (h *Handler) GetMenuItems(c *gin.Context) {
	prop, ok := h.propertyParam(c)
	if !ok {
		return
	}

	q := h.db.WithContext(c.Request.Context()).Where("property_id = ?", prop.ID)
	if c.Query("available") == "true" {
		q = q.Where("is_available = ?", true)
	}
	if cat := c.Query("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}

	items := []models.MenuItem{}
	if err := q.Order("category, name").Find(&items).Error; err != nil {
		h.handleError(c, err, "Failed to fetch menu items")
		return
	}
	respond(c, http.StatusOK, items)
}

type MenuItemRequest struct {
	SKU         string          `json:"sku" binding:"required,max=64"`
	Name        string          `json:"name" binding:"required,max=200"`
	Category    string          `json:"category" binding:"max=100"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable *bool           `json:"is_available"`
}

func (h *Handler) AddMenuItem(c *gin.Context) {
	prop, ok := h.propertyParam(c)
	if !ok {
		return
	}
	var input MenuItemRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Price.IsNegative() {
		fail(c, http.StatusBadRequest, "price cannot be negative")
		return
	}

	item := models.MenuItem{
		ID:          uuid.New(),
		PropertyID:  prop.ID,
		TenantID:    prop.TenantID,
		SKU:         strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:        strings.TrimSpace(input.Name),
		Category:    input.Category,
		Price:       input.Price.Round(2),
		IsAvailable: input.IsAvailable == nil || *input.IsAvailable,
	}

	ctx := c.Request.Context()
	if taken, err := h.skuTaken(ctx, prop.ID, item.SKU, uuid.Nil); err != nil || taken {
		if err == nil {
			err = errDuplicateSKU
		}
		h.handleError(c, err, "Failed to create menu item")
		return
	}
	if err := h.db.WithContext(ctx).Create(&item).Error; err != nil {
		h.handleError(c, err, "Failed to create menu item")
		return
	}
	respond(c, http.StatusCreated, item)
}

// --- PUT: Update price, name or availability ---
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	item, ok := h.menuItemParam(c)
	if !ok {
		return
	}
	var input MenuItemRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Price.IsNegative() {
		fail(c, http.StatusBadRequest, "price cannot be negative")
		return
	}

	ctx := c.Request.Context()
	sku := strings.ToUpper(strings.TrimSpace(input.SKU))
	if taken, err := h.skuTaken(ctx, item.PropertyID, sku, item.ID); err != nil || taken {
		if err == nil {
			err = errDuplicateSKU
		}
		h.handleError(c, err, "Failed to update menu item")
		return
	}

	item.SKU = sku
	item.Name = strings.TrimSpace(input.Name)
	item.Category = input.Category
	item.Price = input.Price.Round(2)
	if input.IsAvailable != nil {
		item.IsAvailable = *input.IsAvailable
	}
	err := h.db.WithContext(ctx).Model(item).
		Select("SKU", "Name", "Category", "Price", "IsAvailable", "UpdatedAt").
		Updates(item).Error
	if err != nil {
		h.handleError(c, err, "Failed to update menu item")
		return
	}
	respond(c, http.StatusOK, item)
}

// --- DELETE: Remove a menu item ---
// Orders keep their own snapshot of the item, so history is unaffected.
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	item, ok := h.menuItemParam(c)
	if !ok {
		return
	}
	if err := h.db.WithContext(c.Request.Context()).Delete(item).Error; err != nil {
		h.handleError(c, err, "Failed to delete menu item")
		return
	}
	respond(c, http.StatusOK, gin.H{"id": item.ID})
}

// --- helpers ---

func (h *Handler) findProperty(ctx context.Context, tenantID, id uuid.UUID) (*models.Property, error) {
	var prop models.Property
	err := h.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&prop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errPropertyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find property: %w", err)
	}
	return &prop, nil
}

func (h *Handler) propertyParam(c *gin.Context) (*models.Property, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid property ID")
		return nil, false
	}
	prop, err := h.findProperty(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.handleError(c, err, "Failed to fetch property")
		return nil, false
	}
	return prop, true
}

func (h *Handler) menuItemParam(c *gin.Context) (*models.MenuItem, bool) {
	prop, ok := h.propertyParam(c)
	if !ok {
		return nil, false
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid menu item ID")
		return nil, false
	}

	var item models.MenuItem
	err = h.db.WithContext(c.Request.Context()).Where("id = ? AND property_id = ?", itemID, prop.ID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = errMenuItemNotFound
	}
	if err != nil {
		h.handleError(c, err, "Failed to fetch menu item")
		return nil, false
	}
	return &item, true
}

func (h *Handler) skuTaken(ctx context.Context, propertyID uuid.UUID, sku string, except uuid.UUID) (bool, error) {
	var n int64
	err := h.db.WithContext(ctx).Model(&models.MenuItem{}).
		Where("property_id = ? AND sku = ? AND id <> ?", propertyID, sku, except).
		Count(&n).Error
	return n > 0, err
}

var hundred = decimal.NewFromInt(100)

func validRate(r decimal.Decimal) bool {
	return !r.IsNegative() && r.LessThanOrEqual(hundred)
}

package handlers

import (
	"errors"
	"net/http"

	"go-hospitality/internal/auth"
	"go-hospitality/internal/cart"
	"go-hospitality/internal/disbursement"
	"go-hospitality/internal/discount"
	"go-hospitality/internal/orders"
	"go-hospitality/internal/payment"
	"go-hospitality/internal/realpay"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler holds everything the HTTP layer talks to.
type Handler struct {
	db            *gorm.DB
	log           *zap.Logger
	tokens        *auth.TokenManager
	carts         *cart.Store
	discounts     *discount.Resolver
	payments      *payment.Service
	orders        *orders.Service
	disbursements *disbursement.Processor
	webhookSecret string
}

// Deps are the collaborators of Handler.
type Deps struct {
	DB            *gorm.DB
	Log           *zap.Logger
	Tokens        *auth.TokenManager
	Carts         *cart.Store
	Discounts     *discount.Resolver
	Payments      *payment.Service
	Orders        *orders.Service
	Disbursements *disbursement.Processor
	WebhookSecret string
}

func New(d Deps) *Handler {
	return &Handler{
		db:            d.DB,
		log:           d.Log,
		tokens:        d.Tokens,
		carts:         d.Carts,
		discounts:     d.Discounts,
		payments:      d.Payments,
		orders:        d.Orders,
		disbursements: d.Disbursements,
		webhookSecret: d.WebhookSecret,
	}
}

// --- Response envelope: { success, data?, error? } ---

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}

// statusFor maps domain errors to HTTP statuses. Anything unknown is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, orders.ErrCartNotFound),
		errors.Is(err, orders.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, disbursement.ErrNotFound),
		errors.Is(err, disbursement.ErrPropertyNotFound),
		errors.Is(err, disbursement.ErrNoBankAccount),
		errors.Is(err, errPropertyNotFound),
		errors.Is(err, errMenuItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrEmptyCart),
		errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, discount.ErrInvalid),
		errors.Is(err, errUnknownItem),
		errors.Is(err, realpay.ErrDeclined):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrCartNotActive),
		errors.Is(err, orders.ErrIdempotencyMismatch),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, payment.ErrNotConfirmable),
		errors.Is(err, discount.ErrDuplicate),
		errors.Is(err, errDuplicateSKU):
		return http.StatusConflict
	case errors.Is(err, realpay.ErrUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleError answers with the mapped status. Domain errors carry their own
// message; internal errors are logged and hidden behind msg.
func (h *Handler) handleError(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
		fail(c, status, msg)
		return
	}
	fail(c, status, err.Error())
}

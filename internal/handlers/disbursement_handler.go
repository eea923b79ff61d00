package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go-hospitality/internal/disbursement"
	"go-hospitality/internal/middleware"
	"go-hospitality/internal/realpay"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const dateLayout = "2006-01-02"

type DisbursementRequest struct {
	PropertyID string `json:"property_id" binding:"required,uuid"`
	// Date defaults to yesterday (UTC).
	Date string `json:"date" binding:"omitempty,datetime=2006-01-02"`
}

// ProcessDisbursement pays out one property's collected funds for a day.
func (h *Handler) ProcessDisbursement(c *gin.Context) {
	var input DisbursementRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	day := time.Now().UTC().AddDate(0, 0, -1)
	if input.Date != "" {
		day, _ = time.Parse(dateLayout, input.Date)
	}

	row, err := h.disbursements.Process(c.Request.Context(), middleware.TenantID(c), uuid.MustParse(input.PropertyID), day)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.handleError(c, err, "Failed to process disbursement")
			return
		}
		// the failed row is returned so the caller can see error_message
		c.AbortWithStatusJSON(status, gin.H{"success": false, "error": err.Error(), "data": row})
		return
	}
	respond(c, http.StatusOK, row)
}

// --- GET: /api/secure/disbursements?property_id=&status=&from=&to=&limit= ---
func (h *Handler) GetDisbursements(c *gin.Context) {
	var f disbursement.ListFilter
	if v := c.Query("property_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid property_id")
			return
		}
		f.PropertyID = &id
	}
	f.Status = c.Query("status")
	for param, dst := range map[string]**time.Time{"from": &f.From, "to": &f.To} {
		if v := c.Query(param); v != "" {
			t, err := time.Parse(dateLayout, v)
			if err != nil {
				fail(c, http.StatusBadRequest, "Invalid "+param+" date, expected YYYY-MM-DD")
				return
			}
			*dst = &t
		}
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		f.Limit = n
	}

	rows, err := h.disbursements.List(c.Request.Context(), middleware.TenantID(c), f)
	if err != nil {
		h.handleError(c, err, "Failed to fetch disbursements")
		return
	}
	respond(c, http.StatusOK, rows)
}

func (h *Handler) GetDisbursement(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "Invalid disbursement ID")
		return
	}
	row, flows, err := h.disbursements.Get(c.Request.Context(), middleware.TenantID(c), id)
	if err != nil {
		h.handleError(c, err, "Failed to fetch disbursement")
		return
	}
	respond(c, http.StatusOK, gin.H{"disbursement": row, "fund_flows": flows})
}

// RealPayWebhook settles payouts RealPay reports as completed or failed.
func (h *Handler) RealPayWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64<<10))
	if err != nil {
		fail(c, http.StatusBadRequest, "Unreadable body")
		return
	}

	ev, err := realpay.ParseEvent(h.webhookSecret, body, c.GetHeader(realpay.SignatureHeader))
	if errors.Is(err, realpay.ErrBadSignature) {
		h.log.Warn("rejected realpay webhook", zap.String("client_ip", c.ClientIP()))
		fail(c, http.StatusUnauthorized, "Invalid signature")
		return
	}
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	row, err := h.disbursements.ApplyEvent(c.Request.Context(), *ev)
	if err != nil {
		h.handleError(c, err, "Failed to apply webhook")
		return
	}
	respond(c, http.StatusOK, gin.H{"id": row.ID, "status": row.Status})
}

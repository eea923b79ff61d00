package handlers

import (
	"net/http"
	"time"

	"go-hospitality/internal/database"
	"go-hospitality/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// --- GET: /api/secure/reports/sales?property_id=&from=YYYY-MM-DD&to=YYYY-MM-DD ---
// The window defaults to the last 30 days; to is inclusive.
func (h *Handler) GetSalesReport(c *gin.Context) {
	ctx := c.Request.Context()
	propertyID, err := uuid.Parse(c.Query("property_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "A valid property_id is required")
		return
	}
	prop, err := h.findProperty(ctx, middleware.TenantID(c), propertyID)
	if err != nil {
		h.handleError(c, err, "Failed to fetch property")
		return
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	start, end := today.AddDate(0, 0, -29), today.AddDate(0, 0, 1)
	if v := c.Query("from"); v != "" {
		if start, err = time.Parse(dateLayout, v); err != nil {
			fail(c, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(dateLayout, v)
		if err != nil {
			fail(c, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		end = to.AddDate(0, 0, 1)
	}
	if !start.Before(end) {
		fail(c, http.StatusBadRequest, "from must not be after to")
		return
	}

	report, err := database.GetSalesReport(ctx, h.db, prop.TenantID, prop.ID, start, end)
	if err != nil {
		h.handleError(c, err, "Failed to build sales report")
		return
	}
	respond(c, http.StatusOK, gin.H{
		"property_id": prop.ID,
		"currency":    prop.Currency,
		"from":        start.Format(dateLayout),
		"to":          end.AddDate(0, 0, -1).Format(dateLayout),
		"report":      report,
	})
}

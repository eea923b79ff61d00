package database

import (
	"context"
	"sort"
	"time"

	"go-hospitality/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TopSeller is one SKU's share of a report window.
type TopSeller struct {
	SKU     string          `json:"sku"`
	Name    string          `json:"name"`
	Sold    int             `json:"sold"`
	Revenue decimal.Decimal `json:"revenue"`
}

// SalesReportResult summarises paid orders for one property.
type SalesReportResult struct {
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalOrders  int64           `json:"total_orders"`
	TopSelling   []TopSeller     `json:"top_selling"`
	RecentOrders []models.Order  `json:"recent_orders"`
}

// GetSalesReport calculates paid sales within [start, end).
func GetSalesReport(ctx context.Context, db *gorm.DB, tenantID, propertyID uuid.UUID, start, end time.Time) (*SalesReportResult, error) {
	result := SalesReportResult{TopSelling: []TopSeller{}, RecentOrders: []models.Order{}}

	paid := func() *gorm.DB {
		return db.WithContext(ctx).Model(&models.Order{}).
			Where("tenant_id = ? AND property_id = ?", tenantID, propertyID).
			Where("payment_status = ?", models.PaymentStatusPaid).
			Where("created_at >= ? AND created_at < ?", start, end)
	}

	// COALESCE gives 0 instead of NULL when there are no sales
	var revenue decimal.NullDecimal
	if err := paid().Select("COALESCE(SUM(total_amount), 0)").Row().Scan(&revenue); err != nil {
		return nil, err
	}
	result.TotalRevenue = revenue.Decimal.Round(2)

	if err := paid().Count(&result.TotalOrders).Error; err != nil {
		return nil, err
	}

	// Line items live in each order's JSON snapshot, so best sellers are tallied here
	var orders []models.Order
	if err := paid().Select("order_items").Find(&orders).Error; err != nil {
		return nil, err
	}
	result.TopSelling = topSellers(orders, 5)

	if err := paid().Order("created_at desc").Limit(10).Find(&result.RecentOrders).Error; err != nil {
		return nil, err
	}

	return &result, nil
}

func topSellers(orders []models.Order, limit int) []TopSeller {
	bySKU := make(map[string]*TopSeller)
	for _, o := range orders {
		for _, item := range o.OrderItems {
			ts, ok := bySKU[item.SKU]
			if !ok {
				ts = &TopSeller{SKU: item.SKU, Name: item.Name}
				bySKU[item.SKU] = ts
			}
			ts.Sold += item.Quantity
			ts.Revenue = ts.Revenue.Add(item.Total())
		}
	}

	out := make([]TopSeller, 0, len(bySKU))
	for _, ts := range bySKU {
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sold != out[j].Sold {
			return out[i].Sold > out[j].Sold
		}
		return out[i].SKU < out[j].SKU
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

package services

import (
	"context"
	"sort"
	"time"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DailySales is the approved business of one day and kind.
type DailySales struct {
	Day   string              `json:"day"`
	Kind  models.DocumentKind `json:"kind"`
	Count int                 `json:"count"`
	Total decimal.Decimal     `json:"total"`
}

type SalesReport struct {
	From  time.Time       `json:"from"`
	To    time.Time       `json:"to"`
	Days  []DailySales    `json:"days"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

type ProductRanking struct {
	ProductID uint            `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
}

type MechanicLoad struct {
	MechanicID     uint            `json:"mechanic_id"`
	Name           string          `json:"name"`
	Active         bool            `json:"active"`
	OpenReceptions int             `json:"open_receptions"`
	ApprovedSales  int             `json:"approved_sales"`
	SalesTotal     decimal.Decimal `json:"sales_total"`
}

// ReportService aggregates approved documents. A document counts once it has
// an approval time, which archived-after-approval documents keep and converted
// quotes hand over to their sale.
type ReportService struct {
	db                *gorm.DB
	lowStockThreshold int
}

func NewReportService(db *gorm.DB, lowStockThreshold int) *ReportService {
	return &ReportService{db: db, lowStockThreshold: lowStockThreshold}
}

func checkRange(from, to time.Time) error {
	if !to.After(from) {
		return apperr.Validation("invalid_range")
	}
	return nil
}

// Sales groups approved quotes and sales by UTC day in [from, to).
func (s *ReportService) Sales(ctx context.Context, from, to time.Time) (*SalesReport, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	from, to = from.UTC(), to.UTC()
	var docs []models.Document
	err := s.db.WithContext(ctx).
		Select("id", "kind", "total", "approved_at").
		Where("approved_at IS NOT NULL AND approved_at >= ? AND approved_at < ?", from, to).
		Order("approved_at").
		Find(&docs).Error
	if err != nil {
		return nil, domainError("reports.sales", err)
	}

	report := &SalesReport{From: from, To: to, Days: []DailySales{}, Total: decimal.Zero}
	index := map[string]int{}
	for _, d := range docs {
		key := d.ApprovedAt.UTC().Format(time.DateOnly) + "/" + string(d.Kind)
		i, ok := index[key]
		if !ok {
			i = len(report.Days)
			index[key] = i
			report.Days = append(report.Days, DailySales{Day: d.ApprovedAt.UTC().Format(time.DateOnly), Kind: d.Kind, Total: decimal.Zero})
		}
		report.Days[i].Count++
		report.Days[i].Total = report.Days[i].Total.Add(d.Total)
		report.Count++
		report.Total = report.Total.Add(d.Total)
	}
	return report, nil
}

// TopProducts ranks products by quantity sold on approved sales in [from, to).
func (s *ReportService) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductRanking, error) {
	if err := checkRange(from, to); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var rows []ProductRanking
	err := s.db.WithContext(ctx).
		Table("line_items AS li").
		Select("li.product_id AS product_id, MAX(li.description) AS name, SUM(li.quantity) AS quantity, SUM(li.amount) AS amount").
		Joins("JOIN documents d ON d.id = li.document_id").
		Where("li.kind = ? AND d.kind = ? AND d.approved_at IS NOT NULL", models.KindProduct, models.KindSale).
		Where("d.approved_at >= ? AND d.approved_at < ?", from.UTC(), to.UTC()).
		Group("li.product_id").
		Order("quantity DESC, product_id").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, domainError("reports.top_products", err)
	}
	return rows, nil
}

// LowStock lists products at or below their minimum, emptiest first.
func (s *ReportService) LowStock(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := lowStockClause(s.db.WithContext(ctx), s.lowStockThreshold).
		Preload("Unit").
		Order("stock, name").
		Find(&out).Error
	if err != nil {
		return nil, domainError("reports.low_stock", err)
	}
	return out, nil
}

// Mechanics reports open receptions and approved sales per mechanic.
func (s *ReportService) Mechanics(ctx context.Context) ([]MechanicLoad, error) {
	const op = "reports.mechanics"
	db := s.db.WithContext(ctx)
	var mechanics []models.Mechanic
	if err := db.Order("name").Find(&mechanics).Error; err != nil {
		return nil, domainError(op, err)
	}

	var open []struct {
		MechanicID uint
		Count      int
	}
	err := db.Model(&models.Reception{}).
		Select("mechanic_id, COUNT(*) AS count").
		Where("mechanic_id IS NOT NULL AND status <> ?", models.ReceptionDelivered).
		Group("mechanic_id").
		Scan(&open).Error
	if err != nil {
		return nil, domainError(op, err)
	}

	var sales []models.Document
	err = db.Select("id", "mechanic_id", "total").
		Where("kind = ? AND approved_at IS NOT NULL AND mechanic_id IS NOT NULL", models.KindSale).
		Find(&sales).Error
	if err != nil {
		return nil, domainError(op, err)
	}

	byID := make(map[uint]*MechanicLoad, len(mechanics))
	out := make([]MechanicLoad, len(mechanics))
	for i, m := range mechanics {
		out[i] = MechanicLoad{MechanicID: m.ID, Name: m.Name, Active: m.Active, SalesTotal: decimal.Zero}
		byID[m.ID] = &out[i]
	}
	for _, o := range open {
		if l, ok := byID[o.MechanicID]; ok {
			l.OpenReceptions = o.Count
		}
	}
	for _, d := range sales {
		if l, ok := byID[*d.MechanicID]; ok {
			l.ApprovedSales++
			l.SalesTotal = l.SalesTotal.Add(d.Total)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenReceptions > out[j].OpenReceptions })
	return out, nil
}

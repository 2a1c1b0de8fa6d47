package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/metrics"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
	"github.com/maremotors/backoffice/internal/stock"
	"github.com/maremotors/backoffice/internal/store"
	"github.com/maremotors/backoffice/internal/tracing"
	"github.com/maremotors/backoffice/internal/validation"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// LineInput is one requested line of a quote or sale.
type LineInput struct {
	Kind      models.ItemKind `json:"kind" validate:"required,oneof=product service"`
	ProductID *uint           `json:"product_id,omitempty" validate:"required_if=Kind product"`
	ServiceID *uint           `json:"service_id,omitempty" validate:"required_if=Kind service"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	Discount  decimal.Decimal `json:"discount" validate:"percent"`
}

// DocumentInput creates a document or replaces the editable part of one.
type DocumentInput struct {
	ClientID    uint            `json:"client_id" validate:"required"`
	MechanicID  *uint           `json:"mechanic_id,omitempty"`
	ReceptionID *uint           `json:"reception_id,omitempty"`
	Notes       string          `json:"notes" validate:"max=2000"`
	Discount    decimal.Decimal `json:"discount" validate:"percent"`
	Lines       []LineInput     `json:"lines" validate:"dive"`
}

func (in DocumentInput) lineItems() []models.LineItem {
	out := make([]models.LineItem, len(in.Lines))
	for i, l := range in.Lines {
		out[i] = models.LineItem{
			Kind:      l.Kind,
			ProductID: l.ProductID,
			ServiceID: l.ServiceID,
			Quantity:  l.Quantity,
			Discount:  l.Discount,
		}
	}
	return out
}

// DocumentFilter narrows List.
type DocumentFilter struct {
	Status   models.DocumentStatus
	ClientID uint
	Limit    int
	Offset   int
}

// TotalsReport compares the stored total with a recomputation from the stored
// lines, at the scale totals are stored.
type TotalsReport struct {
	Stored     decimal.Decimal `json:"stored"`
	Recomputed pricing.Totals  `json:"recomputed"`
	Display    string          `json:"display"`
	Consistent bool            `json:"consistent"`
}

// DocumentService handles quotes and sales. Every status change and deletion
// goes through the stock reconciler.
type DocumentService struct {
	db       *gorm.DB
	store    *store.Store
	rec      *stock.Reconciler
	validate *validation.Validator
	log      *logger.Logger
}

func NewDocumentService(db *gorm.DB, log *logger.Logger) *DocumentService {
	st := store.New(db)
	return &DocumentService{
		db:       db,
		store:    st,
		rec:      stock.NewReconciler(st),
		validate: validation.New(),
		log:      log,
	}
}

func (s *DocumentService) List(ctx context.Context, kind models.DocumentKind, f DocumentFilter) ([]models.Document, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Document{}).Where("kind = ?", kind)
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainError("documents.list", err)
	}
	var docs []models.Document
	if err := q.Preload("Client").Order("id desc").Scopes(paginate(f.Limit, f.Offset)).Find(&docs).Error; err != nil {
		return nil, 0, domainError("documents.list", err)
	}
	return docs, total, nil
}

// Get loads a document of the given kind with its lines, client and mechanic.
func (s *DocumentService) Get(ctx context.Context, kind models.DocumentKind, id uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Preload("Client").
		Preload("Mechanic").
		Where("kind = ?", kind).
		First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound(string(kind) + "_not_found").WithOp("documents.get")
	}
	if err != nil {
		return nil, domainError("documents.get", err)
	}
	return &doc, nil
}

func (s *DocumentService) checkInput(ctx context.Context, in DocumentInput) error {
	if err := s.validate.Check(in); err != nil {
		return err
	}
	settings, err := currentSettings(ctx, s.db)
	if err != nil {
		return err
	}
	if in.Discount.GreaterThan(settings.MaxDiscount) {
		return apperr.Validation("discount_above_limit").WithDetails(map[string]string{"max_discount": settings.MaxDiscount.String()})
	}
	if err := exists(ctx, s.db, &models.Client{}, in.ClientID); err != nil {
		return apperr.Validation("client_not_found")
	}
	if in.MechanicID != nil {
		if err := exists(ctx, s.db, &models.Mechanic{}, *in.MechanicID); err != nil {
			return apperr.Validation("mechanic_not_found")
		}
	}
	if in.ReceptionID != nil {
		if err := exists(ctx, s.db, &models.Reception{}, *in.ReceptionID); err != nil {
			return apperr.Validation("reception_not_found")
		}
	}
	return nil
}

// Create prices the lines against the current catalog and stores a pending document.
func (s *DocumentService) Create(ctx context.Context, kind models.DocumentKind, in DocumentInput) (*models.Document, error) {
	const op = "documents.create"
	if !kind.Valid() {
		return nil, apperr.Validation("invalid_kind").WithOp(op)
	}
	if err := s.checkInput(ctx, in); err != nil {
		return nil, domainError(op, err)
	}

	doc := &models.Document{
		Kind:        kind,
		Status:      models.StatusPending,
		ClientID:    in.ClientID,
		MechanicID:  in.MechanicID,
		ReceptionID: in.ReceptionID,
		Notes:       in.Notes,
		Discount:    in.Discount,
		Lines:       in.lineItems(),
	}
	var totals pricing.Totals
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		st := store.New(tx)
		var err error
		if totals, err = stock.Reprice(ctx, st, doc); err != nil {
			return err
		}
		if err := st.SaveDocument(ctx, doc); err != nil {
			return err
		}
		return writeAudit(ctx, tx, string(kind), doc.ID, "create", "", doc.Total.String())
	})
	if err != nil {
		return nil, domainError(op, err)
	}
	s.log.WithContext(ctx).Info("document created", "kind", kind, "id", doc.ID, "number", doc.Number, "total", doc.Total.StringFixed(2))
	return s.withWarnings(ctx, doc, totals)
}

// Update replaces lines, discount and references of a pending document.
func (s *DocumentService) Update(ctx context.Context, kind models.DocumentKind, id uint, in DocumentInput) (*models.Document, error) {
	const op = "documents.update"
	if err := s.checkInput(ctx, in); err != nil {
		return nil, domainError(op, err)
	}

	var totals pricing.Totals
	var doc *models.Document
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Locking the row makes a concurrent approval wait for the new lines.
		st := store.New(tx).ForUpdate()
		current, err := st.Document(ctx, id)
		if err != nil {
			return err
		}
		if current.Kind != kind {
			return stock.ErrDocumentNotFound
		}
		if !current.CanEdit() {
			return apperr.Conflict("document_not_editable").WithDetails(map[string]string{"status": string(current.Status)})
		}
		before := current.Total.String()
		current.ClientID = in.ClientID
		current.MechanicID = in.MechanicID
		current.ReceptionID = in.ReceptionID
		current.Notes = in.Notes
		current.Discount = in.Discount
		current.Lines = in.lineItems()
		if totals, err = stock.Reprice(ctx, st, current); err != nil {
			return err
		}
		// The status guard keeps a concurrent approval from being overwritten.
		res := tx.Model(&models.Document{}).Where("id = ? AND status = ?", id, models.StatusPending).UpdateColumn("status", models.StatusPending)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return stock.ErrConcurrentUpdate
		}
		if err := st.SaveDocument(ctx, current); err != nil {
			return err
		}
		doc = current
		return writeAudit(ctx, tx, string(kind), id, "update", before, current.Total.String())
	})
	if err != nil {
		return nil, domainError(op, err)
	}
	s.log.WithContext(ctx).Info("document updated", "kind", kind, "id", id, "total", doc.Total.StringFixed(2))
	return s.withWarnings(ctx, doc, totals)
}

// withWarnings reloads doc and attaches the pricing warnings for the caller.
func (s *DocumentService) withWarnings(ctx context.Context, doc *models.Document, totals pricing.Totals) (*models.Document, error) {
	if totals.HasWarning(pricing.WarningDiscountExceedsTotal) {
		s.log.WithContext(ctx).Warn("document total clamped to zero", "kind", doc.Kind, "id", doc.ID, "subtotal", totals.Subtotal.String())
	}
	out, err := s.Get(ctx, doc.Kind, doc.ID)
	if err != nil {
		return nil, err
	}
	for _, w := range totals.Warnings {
		out.Warnings = append(out.Warnings, string(w))
	}
	return out, nil
}

// checkKind makes /quotes/{id} and /sales/{id} address only their own kind.
func (s *DocumentService) checkKind(ctx context.Context, kind models.DocumentKind, id uint) error {
	doc, err := s.store.Document(ctx, id)
	if err != nil {
		return err
	}
	if doc.Kind != kind {
		return apperr.NotFound(string(kind) + "_not_found")
	}
	return nil
}

// Transition moves a document to status to. Approving consumes stock, reopening
// an approved document restores it, and repeating the current status changes nothing.
func (s *DocumentService) Transition(ctx context.Context, kind models.DocumentKind, id uint, to models.DocumentStatus) (*models.Document, stock.Result, error) {
	const op = "documents.transition"
	ctx, span := tracing.Start(ctx, op,
		attribute.String("document.kind", string(kind)),
		attribute.Int64("document.id", int64(id)),
		attribute.String("document.to", string(to)),
	)
	defer span.End()

	if err := s.checkKind(ctx, kind, id); err != nil {
		tracing.Fail(span, err)
		return nil, stock.Result{}, domainError(op, err)
	}
	_, res, err := s.rec.Transition(ctx, id, to, auth.Actor(ctx))
	if err != nil {
		if errors.Is(err, stock.ErrInsufficientStock) {
			metrics.StockRejections.WithLabelValues(string(kind)).Inc()
			s.log.WithContext(ctx).Warn("approval rejected", "kind", kind, "id", id, "error", err.Error())
		}
		tracing.Fail(span, err)
		return nil, stock.Result{}, domainError(op, err)
	}

	if res.Changed {
		metrics.ObserveTransition(string(kind), string(res.From), string(res.To), res.Units)
		if err := writeAudit(ctx, s.db, string(kind), id, "status", string(res.From), string(res.To)); err != nil {
			s.log.WithContext(ctx).DatabaseError("audit", err)
		}
		s.log.WithContext(ctx).Info("document status changed", "kind", kind, "id", id, "from", res.From, "to", res.To, "units", res.Units)
	}
	span.SetAttributes(attribute.Bool("document.changed", res.Changed), attribute.Int("stock.units", res.Units))

	doc, err := s.Get(ctx, kind, id)
	return doc, res, err
}

// Delete removes a document, returning its stock first when it holds any.
func (s *DocumentService) Delete(ctx context.Context, kind models.DocumentKind, id uint) error {
	const op = "documents.delete"
	ctx, span := tracing.Start(ctx, op, attribute.String("document.kind", string(kind)), attribute.Int64("document.id", int64(id)))
	defer span.End()

	if err := s.checkKind(ctx, kind, id); err != nil {
		tracing.Fail(span, err)
		return domainError(op, err)
	}
	doc, err := s.rec.Delete(ctx, id, auth.Actor(ctx))
	if err != nil {
		tracing.Fail(span, err)
		return domainError(op, err)
	}
	if stock.HoldsStock(doc) {
		units := 0
		for _, q := range models.ProductQuantities(doc.Lines) {
			units += q
		}
		metrics.ObserveUnits(-units)
	}
	if err := writeAudit(ctx, s.db, string(kind), id, "delete", string(doc.Status), ""); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	s.log.WithContext(ctx).Info("document deleted", "kind", kind, "id", id, "number", doc.Number, "status", doc.Status)
	return nil
}

// Totals recomputes the total of a stored document from its stored lines.
func (s *DocumentService) Totals(ctx context.Context, kind models.DocumentKind, id uint) (*TotalsReport, error) {
	doc, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	totals, err := pricing.Recompute(doc.Lines, doc.Discount)
	if err != nil {
		return nil, domainError("documents.totals", err)
	}
	return &TotalsReport{
		Stored:     doc.Total,
		Recomputed: totals,
		Display:    totals.Rounded().StringFixed(2),
		Consistent: totals.Matches(doc.Total),
	}, nil
}

// Convert turns an approved quote into an approved sale that takes over the
// stock the quote consumed.
func (s *DocumentService) Convert(ctx context.Context, quoteID uint) (*models.Document, error) {
	const op = "documents.convert"
	ctx, span := tracing.Start(ctx, op, attribute.Int64("document.id", int64(quoteID)))
	defer span.End()

	if err := s.checkKind(ctx, models.KindQuote, quoteID); err != nil {
		tracing.Fail(span, err)
		return nil, domainError(op, err)
	}
	sale := &models.Document{}
	quote, err := s.rec.Convert(ctx, quoteID, sale)
	if err != nil {
		tracing.Fail(span, err)
		return nil, domainError(op, err)
	}
	sale.Notes = fmt.Sprintf("From quote %s", quote.Number)
	if err := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", sale.ID).Update("notes", sale.Notes).Error; err != nil {
		s.log.WithContext(ctx).DatabaseError("convert notes", err)
	}

	metrics.ObserveTransition(string(models.KindQuote), string(models.StatusApproved), string(models.StatusArchived), 0)
	for _, e := range []struct {
		kind models.DocumentKind
		id   uint
		old  string
		new  string
	}{
		{models.KindQuote, quote.ID, string(models.StatusApproved), string(models.StatusArchived)},
		{models.KindSale, sale.ID, "", sale.Number},
	} {
		if err := writeAudit(ctx, s.db, string(e.kind), e.id, "convert", e.old, e.new); err != nil {
			s.log.WithContext(ctx).DatabaseError("audit", err)
		}
	}
	s.log.WithContext(ctx).Info("quote converted", "quote", quote.Number, "sale", sale.Number)
	return s.Get(ctx, models.KindSale, sale.ID)
}

func exists(ctx context.Context, db *gorm.DB, model any, id uint) error {
	var count int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Movements lists the inventory ledger entries written for a document.
func (s *DocumentService) Movements(ctx context.Context, kind models.DocumentKind, id uint) ([]models.StockMovement, error) {
	if err := s.checkKind(ctx, kind, id); err != nil {
		return nil, domainError("documents.movements", err)
	}
	var out []models.StockMovement
	if err := s.db.WithContext(ctx).Where("document_id = ?", id).Order("id asc").Find(&out).Error; err != nil {
		return nil, domainError("documents.movements", err)
	}
	return out, nil
}

package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
	"github.com/maremotors/backoffice/internal/stock"
	"gorm.io/gorm"
)

// domainError translates pricing, stock and storage errors into apperr values.
// Errors that already carry a kind pass through unchanged.
func domainError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Op == "" {
			ae.Op = op
		}
		return ae
	}

	var shortage *stock.InsufficientStockError
	if errors.As(err, &shortage) {
		return apperr.Wrap(apperr.KindConflict, "insufficient_stock", err).WithOp(op).WithDetails(shortage.Shortages)
	}
	var lineErr *pricing.LineError
	if errors.As(err, &lineErr) {
		return apperr.Wrap(apperr.KindValidation, lineErrorCode(lineErr.Err), err).WithOp(op).
			WithDetails(map[string]any{"line": lineErr.Index})
	}

	switch {
	case errors.Is(err, pricing.ErrReferenceNotFound):
		return apperr.Wrap(apperr.KindValidation, "reference_not_found", err).WithOp(op)
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return apperr.Wrap(apperr.KindValidation, "invalid_quantity", err).WithOp(op)
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return apperr.Wrap(apperr.KindValidation, "invalid_discount", err).WithOp(op)
	case errors.Is(err, stock.ErrInsufficientStock):
		return apperr.Wrap(apperr.KindConflict, "insufficient_stock", err).WithOp(op)
	case errors.Is(err, stock.ErrInvalidTransition):
		return apperr.Wrap(apperr.KindConflict, "invalid_transition", err).WithOp(op)
	case errors.Is(err, stock.ErrConcurrentUpdate):
		return apperr.Wrap(apperr.KindConflict, "concurrent_update", err).WithOp(op)
	case errors.Is(err, stock.ErrDocumentNotFound):
		return apperr.Wrap(apperr.KindNotFound, "document_not_found", err).WithOp(op)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(apperr.KindNotFound, "not_found", err).WithOp(op)
	case isDuplicate(err):
		return apperr.Wrap(apperr.KindConflict, "already_exists", err).WithOp(op)
	}
	return apperr.Internal(op, err)
}

func lineErrorCode(err error) string {
	switch {
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, pricing.ErrInvalidDiscount):
		return "invalid_discount"
	}
	return "reference_not_found"
}

// isDuplicate recognizes unique violations from postgres and sqlite.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// writeAudit appends one entry to the audit log using db, which may be a transaction.
func writeAudit(ctx context.Context, db *gorm.DB, entity string, id uint, action, oldValue, newValue string) error {
	entry := models.AuditLog{
		UserID:     auth.Actor(ctx),
		EntityType: entity,
		EntityID:   id,
		Action:     action,
		OldValue:   oldValue,
		NewValue:   newValue,
	}
	return db.WithContext(ctx).Create(&entry).Error
}

// paginate applies limit and offset when a limit is set.
func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit).Offset(offset)
	}
}

// Package pricing computes line contributions and document totals.
//
// All arithmetic uses decimal values at full precision. Persisted amounts are
// cut to models.MoneyScale (Totals.Stored) and rounding to currency precision
// happens only when a total is presented (Totals.Rounded).
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/shopspring/decimal"
)

var (
	ErrReferenceNotFound = errors.New("catalog reference not found")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidDiscount   = errors.New("discount must be between 0 and 100 with at most two decimals")
)

// Warning is a non-fatal condition raised while totalizing.
type Warning string

const WarningDiscountExceedsTotal Warning = "discount_exceeds_total"

// LineError locates a failure at a line of a document.
type LineError struct {
	Index int
	Err   error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Index+1, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

// Lookup resolves a catalog reference. Implementations return ErrReferenceNotFound
// (possibly wrapped) when nothing matches.
type Lookup interface {
	Find(ctx context.Context, kind models.ItemKind, id uint) (models.CatalogItem, error)
}

var hundred = decimal.NewFromInt(100)

// validDiscount accepts 0..100 with at most two decimals, the scale discounts are stored at.
func validDiscount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.LessThanOrEqual(hundred) && d.Equal(d.Round(2))
}

// factor turns a percentage discount into the multiplier 1 - d/100.
func factor(discount decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(1).Sub(discount.Div(hundred))
}

// PriceLine returns price * quantity * (1 - discount/100) for a line resolved to item.
func PriceLine(item models.CatalogItem, line models.LineItem) (decimal.Decimal, error) {
	id, ok := line.Ref()
	if !ok || item.Kind != line.Kind || item.ID != id {
		return decimal.Zero, ErrReferenceNotFound
	}
	return amount(item.BasePrice(), line.Quantity, line.Discount)
}

func amount(price decimal.Decimal, qty int, discount decimal.Decimal) (decimal.Decimal, error) {
	if qty <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if !validDiscount(discount) {
		return decimal.Zero, ErrInvalidDiscount
	}
	return price.Mul(decimal.NewFromInt(int64(qty))).Mul(factor(discount)), nil
}

// Totals is the outcome of totalizing a document.
type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Warnings []Warning       `json:"warnings,omitempty"`
}

// Rounded is the total at currency precision, for presentation only.
func (t Totals) Rounded() decimal.Decimal {
	return t.Total.Round(2)
}

// Stored is the total as persisted on the document.
func (t Totals) Stored() decimal.Decimal {
	return t.Total.Round(models.MoneyScale)
}

// Matches reports whether a persisted total agrees with t at storage scale.
func (t Totals) Matches(stored decimal.Decimal) bool {
	return t.Stored().Equal(stored.Round(models.MoneyScale))
}

func (t Totals) HasWarning(w Warning) bool {
	for _, got := range t.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Totalize applies the document discount to the sum of line contributions.
// A negative result is clamped to zero with WarningDiscountExceedsTotal.
func Totalize(contributions []decimal.Decimal, discount decimal.Decimal) (Totals, error) {
	if !validDiscount(discount) {
		return Totals{}, ErrInvalidDiscount
	}
	subtotal := decimal.Sum(decimal.Zero, contributions...)
	t := Totals{Subtotal: subtotal, Discount: discount, Total: subtotal.Mul(factor(discount))}
	if t.Total.IsNegative() {
		t.Total = decimal.Zero
		t.Warnings = append(t.Warnings, WarningDiscountExceedsTotal)
	}
	return t, nil
}

// Price resolves every line through lookup, captures its description, base unit
// price and amount, and totalizes the document. Lines are modified in place.
func Price(ctx context.Context, lookup Lookup, lines []models.LineItem, discount decimal.Decimal) (Totals, error) {
	contributions := make([]decimal.Decimal, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		id, ok := line.Ref()
		if !ok {
			return Totals{}, &LineError{Index: i, Err: ErrReferenceNotFound}
		}
		item, err := lookup.Find(ctx, line.Kind, id)
		if err != nil {
			if errors.Is(err, ErrReferenceNotFound) {
				return Totals{}, &LineError{Index: i, Err: ErrReferenceNotFound}
			}
			return Totals{}, err
		}
		amt, err := PriceLine(item, *line)
		if err != nil {
			return Totals{}, &LineError{Index: i, Err: err}
		}
		line.Position = i
		line.Description = item.Name
		line.UnitPrice = item.BasePrice()
		line.Amount = amt.Round(models.MoneyScale)
		contributions = append(contributions, amt)
	}
	return Totalize(contributions, discount)
}

// Recompute totalizes from the prices captured on the lines, without lookups.
// A persisted document is consistent when Recompute(lines, discount).Total equals its Total.
func Recompute(lines []models.LineItem, discount decimal.Decimal) (Totals, error) {
	contributions := make([]decimal.Decimal, 0, len(lines))
	for i, line := range lines {
		if _, ok := line.Ref(); !ok {
			return Totals{}, &LineError{Index: i, Err: ErrReferenceNotFound}
		}
		amt, err := amount(line.UnitPrice, line.Quantity, line.Discount)
		if err != nil {
			return Totals{}, &LineError{Index: i, Err: err}
		}
		contributions = append(contributions, amt)
	}
	return Totalize(contributions, discount)
}

package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup map[models.ItemKind]map[uint]models.CatalogItem

func (f fakeLookup) Find(_ context.Context, kind models.ItemKind, id uint) (models.CatalogItem, error) {
	item, ok := f[kind][id]
	if !ok {
		return models.CatalogItem{}, ErrReferenceNotFound
	}
	return item, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func idp(v uint) *uint { return &v }

func productLine(id uint, qty int, discount string) models.LineItem {
	return models.LineItem{Kind: models.KindProduct, ProductID: idp(id), Quantity: qty, Discount: dec(discount)}
}

func serviceLine(id uint, qty int, discount string) models.LineItem {
	return models.LineItem{Kind: models.KindService, ServiceID: idp(id), Quantity: qty, Discount: dec(discount)}
}

func TestPriceLine(t *testing.T) {
	item := models.CatalogItem{ID: 1, Kind: models.KindProduct, UnitPrice: dec("100"), ExchangeRate: dec("1")}

	got, err := PriceLine(item, productLine(1, 3, "0"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("300")), "got %s", got)

	got, err = PriceLine(item, productLine(1, 3, "12.5"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("262.5")), "got %s", got)
}

func TestPriceLineAppliesExchangeRate(t *testing.T) {
	item := models.CatalogItem{ID: 1, Kind: models.KindProduct, UnitPrice: dec("10"), ExchangeRate: dec("1.1")}
	got, err := PriceLine(item, productLine(1, 2, "0"))
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("22")), "got %s", got)
}

func TestPriceLineErrors(t *testing.T) {
	product := models.CatalogItem{ID: 1, Kind: models.KindProduct, UnitPrice: dec("5")}

	tests := []struct {
		name string
		item models.CatalogItem
		line models.LineItem
		want error
	}{
		{"zero quantity", product, productLine(1, 0, "0"), ErrInvalidQuantity},
		{"negative quantity", product, productLine(1, -2, "0"), ErrInvalidQuantity},
		{"discount above 100", product, productLine(1, 1, "100.01"), ErrInvalidDiscount},
		{"negative discount", product, productLine(1, 1, "-1"), ErrInvalidDiscount},
		{"discount finer than two decimals", product, productLine(1, 1, "12.345"), ErrInvalidDiscount},
		{"kind mismatch", product, serviceLine(1, 1, "0"), ErrReferenceNotFound},
		{"id mismatch", product, productLine(2, 1, "0"), ErrReferenceNotFound},
		{"no reference", product, models.LineItem{Kind: models.KindProduct, Quantity: 1}, ErrReferenceNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceLine(tt.item, tt.line)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTotalize(t *testing.T) {
	totals, err := Totalize([]decimal.Decimal{dec("300")}, dec("10"))
	require.NoError(t, err)
	assert.True(t, totals.Total.Equal(dec("270")))
	assert.True(t, totals.Subtotal.Equal(dec("300")))
	assert.Empty(t, totals.Warnings)

	_, err = Totalize(nil, dec("101"))
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	empty, err := Totalize(nil, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, empty.Total.IsZero())
}

func TestTotalizeClampsNegativeTotal(t *testing.T) {
	// A credit line larger than the parts on the document.
	totals, err := Totalize([]decimal.Decimal{dec("50"), dec("-80")}, dec("0"))
	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero(), "got %s", totals.Total)
	assert.True(t, totals.HasWarning(WarningDiscountExceedsTotal))
}

func TestTotalizeKeepsFullPrecisionUntilPresentation(t *testing.T) {
	// Three lines of 0.333 each: rounding per line would give 0.99.
	contribs := []decimal.Decimal{dec("0.333"), dec("0.333"), dec("0.334")}
	totals, err := Totalize(contribs, decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, "1", totals.Total.String())
	assert.Equal(t, "1.00", totals.Rounded().StringFixed(2))
}

func TestPriceCapturesLineValues(t *testing.T) {
	lookup := fakeLookup{
		models.KindProduct: {1: {ID: 1, Kind: models.KindProduct, Name: "Impeller", UnitPrice: dec("100"), ExchangeRate: dec("1")}},
		models.KindService: {7: {ID: 7, Kind: models.KindService, Name: "Winterizing", UnitPrice: dec("80"), ExchangeRate: dec("1")}},
	}
	lines := []models.LineItem{productLine(1, 3, "0"), serviceLine(7, 1, "25")}

	totals, err := Price(context.Background(), lookup, lines, dec("10"))
	require.NoError(t, err)
	// (300 + 60) * 0.9
	assert.True(t, totals.Total.Equal(dec("324")), "got %s", totals.Total)
	assert.Equal(t, "Impeller", lines[0].Description)
	assert.Equal(t, 1, lines[1].Position)
	assert.True(t, lines[1].Amount.Equal(dec("60")))

	again, err := Recompute(lines, dec("10"))
	require.NoError(t, err)
	assert.True(t, again.Total.Equal(totals.Total))
}

func TestPriceReportsLineIndex(t *testing.T) {
	lookup := fakeLookup{models.KindProduct: {1: {ID: 1, Kind: models.KindProduct, UnitPrice: dec("1")}}}
	lines := []models.LineItem{productLine(1, 1, "0"), productLine(99, 1, "0")}

	_, err := Price(context.Background(), lookup, lines, decimal.Zero)
	var lineErr *LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, 1, lineErr.Index)
	assert.ErrorIs(t, err, ErrReferenceNotFound)
}

func TestPriceExampleFromShopFloor(t *testing.T) {
	// Product P at 100, quantity 3, document discount 10%.
	lookup := fakeLookup{models.KindProduct: {1: {ID: 1, Kind: models.KindProduct, Name: "P", UnitPrice: dec("100"), Stock: 5}}}
	lines := []models.LineItem{productLine(1, 3, "0")}
	totals, err := Price(context.Background(), lookup, lines, dec("10"))
	require.NoError(t, err)
	assert.Equal(t, "270.00", totals.Rounded().StringFixed(2))
}

func TestStoredTotalIsCutToMoneyScale(t *testing.T) {
	item := models.CatalogItem{ID: 1, Kind: models.KindProduct, Name: "Impeller", UnitPrice: dec("19.99"), ExchangeRate: dec("3.712345")}
	lookup := fakeLookup{models.KindProduct: {1: item}, models.KindService: {}}
	lines := []models.LineItem{productLine(1, 7, "3.3")}

	totals, err := Price(context.Background(), lookup, lines, dec("12.35"))
	require.NoError(t, err)
	assert.Equal(t, "74.209777", lines[0].UnitPrice.String())
	assert.True(t, totals.Matches(totals.Stored()))
	assert.True(t, totals.Matches(dec(totals.Stored().String())))

	again, err := Recompute(lines, dec("12.35"))
	require.NoError(t, err)
	assert.True(t, again.Matches(totals.Stored()), "stored %s recomputed %s", totals.Stored(), again.Total)
}

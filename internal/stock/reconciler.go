package stock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/pricing"
)

type effect int

const (
	effectNone effect = iota
	effectConsume
	effectRestore
)

// plan returns the stock effect of moving a document from one status to another.
func plan(from, to models.DocumentStatus) (effect, error) {
	switch {
	case from == models.StatusPending && to == models.StatusApproved:
		return effectConsume, nil
	case from == models.StatusApproved && to == models.StatusPending:
		return effectRestore, nil
	case from == models.StatusApproved && to == models.StatusArchived,
		from == models.StatusPending && to == models.StatusArchived:
		return effectNone, nil
	}
	return effectNone, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, from, to)
}

// Result describes what a transition did.
type Result struct {
	From    models.DocumentStatus
	To      models.DocumentStatus
	Changed bool
	// Units is the number of stock units consumed (positive) or restored (negative).
	Units int
}

// Reconciler drives document status and keeps product stock consistent with it.
type Reconciler struct {
	gw  Gateway
	now func() time.Time
}

func NewReconciler(gw Gateway) *Reconciler {
	return &Reconciler{gw: gw, now: time.Now}
}

// Transition moves the stored document id to status to. Re-entering the current
// status is a no-op. On success doc, when not nil, reflects the stored state.
func (r *Reconciler) Transition(ctx context.Context, id uint, to models.DocumentStatus, actor *uint) (*models.Document, Result, error) {
	if !to.Valid() {
		return nil, Result{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	var (
		res Result
		out *models.Document
	)
	err := r.gw.WithinTx(ctx, func(gw Gateway) error {
		doc, err := gw.Document(ctx, id)
		if err != nil {
			return err
		}
		res = Result{From: doc.Status, To: to}
		out = doc
		if doc.Status == to {
			return nil
		}

		eff, err := plan(doc.Status, to)
		if err != nil {
			return err
		}
		approvedAt := doc.ApprovedAt
		switch {
		case eff == effectConsume:
			now := r.now().UTC()
			approvedAt = &now
		case eff == effectRestore, doc.Status == models.StatusPending:
			approvedAt = nil
		}

		ok, err := gw.UpdateStatus(ctx, id, doc.Status, to, approvedAt)
		if err != nil {
			return err
		}
		if !ok {
			// Lost a race: only the outcome we wanted counts as success.
			current, err := gw.Document(ctx, id)
			if err != nil {
				return err
			}
			out = current
			if current.Status == to {
				res.From = to
				return nil
			}
			return ErrConcurrentUpdate
		}

		m := Movement{DocumentID: &doc.ID, UserID: actor}
		switch eff {
		case effectConsume:
			m.Reason = models.MovementApproval
			res.Units, err = r.consume(ctx, gw, doc.Lines, m)
		case effectRestore:
			m.Reason = models.MovementReversal
			res.Units, err = r.restore(ctx, gw, doc.Lines, m)
			res.Units = -res.Units
		}
		if err != nil {
			return err
		}

		doc.Status = to
		doc.ApprovedAt = approvedAt
		res.Changed = true
		return nil
	})
	if err != nil {
		return nil, Result{}, err
	}
	return out, res, nil
}

// Delete removes the stored document, restoring its stock first when the
// document holds stock. It returns the document as it was before deletion.
func (r *Reconciler) Delete(ctx context.Context, id uint, actor *uint) (*models.Document, error) {
	var out *models.Document
	err := r.gw.WithinTx(ctx, func(gw Gateway) error {
		doc, err := gw.Document(ctx, id)
		if err != nil {
			return err
		}
		if HoldsStock(doc) {
			m := Movement{Reason: models.MovementReversal, DocumentID: &doc.ID, UserID: actor}
			if _, err := r.restore(ctx, gw, doc.Lines, m); err != nil {
				return err
			}
		}
		ok, err := gw.DeleteDocument(ctx, id, doc.Status)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		out = doc
		return nil
	})
	return out, err
}

// Convert turns an approved quote into an approved sale. The stock consumed by
// the quote is handed over to the sale, so no units move. sale is stored with
// the quote's lines, discount and total unless it already carries lines.
func (r *Reconciler) Convert(ctx context.Context, quoteID uint, sale *models.Document) (*models.Document, error) {
	var quote *models.Document
	err := r.gw.WithinTx(ctx, func(gw Gateway) error {
		q, err := gw.Document(ctx, quoteID)
		if err != nil {
			return err
		}
		if q.Kind != models.KindQuote || q.Status != models.StatusApproved {
			return fmt.Errorf("%w: only approved quotes convert, got %s %s", ErrInvalidTransition, q.Status, q.Kind)
		}

		ok, err := gw.UpdateStatus(ctx, q.ID, models.StatusApproved, models.StatusArchived, nil)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}

		approvedAt := q.ApprovedAt
		if approvedAt == nil {
			now := r.now().UTC()
			approvedAt = &now
		}
		sale.ID = 0
		sale.Number = ""
		sale.Kind = models.KindSale
		sale.Status = models.StatusApproved
		sale.ApprovedAt = approvedAt
		sale.SourceQuoteID = &q.ID
		if sale.ClientID == 0 {
			sale.ClientID = q.ClientID
		}
		if sale.MechanicID == nil {
			sale.MechanicID = q.MechanicID
		}
		if sale.ReceptionID == nil {
			sale.ReceptionID = q.ReceptionID
		}
		if len(sale.Lines) == 0 {
			sale.Discount = q.Discount
			sale.Total = q.Total
			sale.Lines = make([]models.LineItem, len(q.Lines))
			for i, l := range q.Lines {
				l.ID = 0
				l.DocumentID = 0
				sale.Lines[i] = l
			}
		}
		if err := gw.SaveDocument(ctx, sale); err != nil {
			return err
		}

		q.Status = models.StatusArchived
		q.ApprovedAt = nil
		quote = q
		return nil
	})
	return quote, err
}

// productIDs returns the product quantities of lines in ascending product id,
// so concurrent approvals lock rows in the same order.
func productIDs(qty map[uint]int) []uint {
	ids := make([]uint, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// consume checks every product line first and then decrements, so a rejected
// approval reports all shortages at once.
func (r *Reconciler) consume(ctx context.Context, gw Gateway, lines []models.LineItem, m Movement) (int, error) {
	qty := models.ProductQuantities(lines)
	ids := productIDs(qty)

	var shortages []Shortage
	names := make(map[uint]string, len(ids))
	for _, id := range ids {
		item, err := gw.Find(ctx, models.KindProduct, id)
		if err != nil {
			return 0, err
		}
		names[id] = item.Name
		if item.Stock < qty[id] {
			shortages = append(shortages, Shortage{ProductID: id, Name: item.Name, Requested: qty[id], Available: item.Stock})
		}
	}
	if len(shortages) > 0 {
		return 0, &InsufficientStockError{Shortages: shortages}
	}

	units := 0
	for _, id := range ids {
		err := gw.Decrement(ctx, id, qty[id], m)
		if errors.Is(err, ErrInsufficientStock) {
			available := 0
			if item, ferr := gw.Find(ctx, models.KindProduct, id); ferr == nil {
				available = item.Stock
			}
			return 0, &InsufficientStockError{Shortages: []Shortage{{ProductID: id, Name: names[id], Requested: qty[id], Available: available}}}
		}
		if err != nil {
			return 0, err
		}
		units += qty[id]
	}
	return units, nil
}

func (r *Reconciler) restore(ctx context.Context, gw Gateway, lines []models.LineItem, m Movement) (int, error) {
	qty := models.ProductQuantities(lines)
	units := 0
	for _, id := range productIDs(qty) {
		if err := gw.Increment(ctx, id, qty[id], m); err != nil {
			return 0, err
		}
		units += qty[id]
	}
	return units, nil
}

// Reprice resolves the lines of doc through the gateway and stores the
// recomputed total on it.
func Reprice(ctx context.Context, lookup pricing.Lookup, doc *models.Document) (pricing.Totals, error) {
	totals, err := pricing.Price(ctx, lookup, doc.Lines, doc.Discount)
	if err != nil {
		return pricing.Totals{}, err
	}
	doc.Total = totals.Stored()
	return totals, nil
}

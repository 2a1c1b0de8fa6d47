package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReceptionInput records a watercraft left at the shop.
type ReceptionInput struct {
	ClientID      uint   `json:"client_id" validate:"required"`
	MechanicID    *uint  `json:"mechanic_id,omitempty"`
	CraftType     string `json:"craft_type" validate:"required,max=40"`
	Brand         string `json:"brand" validate:"max=120"`
	Model         string `json:"model" validate:"max=120"`
	HullNumber    string `json:"hull_number" validate:"max=60"`
	EngineHours   int    `json:"engine_hours" validate:"gte=0"`
	ReportedIssue string `json:"reported_issue" validate:"required"`
	Diagnosis     string `json:"diagnosis"`
}

// ReceptionQuoteInput holds the optional opening lines of a quote drafted from a reception.
type ReceptionQuoteInput struct {
	Notes    string          `json:"notes"`
	Discount decimal.Decimal `json:"discount"`
	Lines    []LineInput     `json:"lines"`
}

type ReceptionFilter struct {
	Status     models.ReceptionStatus
	ClientID   uint
	MechanicID uint
	OpenOnly   bool
	Limit      int
	Offset     int
}

type ReceptionService struct {
	db       *gorm.DB
	docs     *DocumentService
	validate *validation.Validator
	log      *logger.Logger
	now      func() time.Time
}

func NewReceptionService(db *gorm.DB, docs *DocumentService, log *logger.Logger) *ReceptionService {
	return &ReceptionService{db: db, docs: docs, validate: validation.New(), log: log, now: time.Now}
}

// newTicket returns a short code such as REC-1A2B3C4D.
func newTicket() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "REC-" + strings.ToUpper(id[:8])
}

func (s *ReceptionService) checkRefs(ctx context.Context, in ReceptionInput) error {
	if err := exists(ctx, s.db, &models.Client{}, in.ClientID); err != nil {
		return apperr.Validation("client_not_found")
	}
	if in.MechanicID != nil {
		if err := exists(ctx, s.db, &models.Mechanic{}, *in.MechanicID); err != nil {
			return apperr.Validation("mechanic_not_found")
		}
	}
	return nil
}

func (s *ReceptionService) List(ctx context.Context, f ReceptionFilter) ([]models.Reception, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Reception{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.MechanicID != 0 {
		q = q.Where("mechanic_id = ?", f.MechanicID)
	}
	if f.OpenOnly {
		q = q.Where("status <> ?", models.ReceptionDelivered)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainError("receptions.list", err)
	}
	var out []models.Reception
	if err := q.Preload("Client").Preload("Mechanic").Order("received_at desc, id desc").Scopes(paginate(f.Limit, f.Offset)).Find(&out).Error; err != nil {
		return nil, 0, domainError("receptions.list", err)
	}
	return out, total, nil
}

func (s *ReceptionService) Get(ctx context.Context, id uint) (*models.Reception, error) {
	var r models.Reception
	err := s.db.WithContext(ctx).Preload("Client").Preload("Mechanic").First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("reception_not_found")
	}
	if err != nil {
		return nil, domainError("receptions.get", err)
	}
	return &r, nil
}

func (s *ReceptionService) Create(ctx context.Context, in ReceptionInput) (*models.Reception, error) {
	const op = "receptions.create"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return nil, err
	}
	r := models.Reception{
		Ticket:        newTicket(),
		ClientID:      in.ClientID,
		MechanicID:    in.MechanicID,
		CraftType:     strings.TrimSpace(in.CraftType),
		Brand:         in.Brand,
		Model:         in.Model,
		HullNumber:    strings.ToUpper(strings.TrimSpace(in.HullNumber)),
		EngineHours:   in.EngineHours,
		ReportedIssue: in.ReportedIssue,
		Diagnosis:     in.Diagnosis,
		Status:        models.ReceptionReceived,
		ReceivedAt:    s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, domainError(op, err)
	}
	if err := writeAudit(ctx, s.db, "reception", r.ID, "create", "", r.Ticket); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	s.log.WithContext(ctx).Info("reception created", "id", r.ID, "ticket", r.Ticket, "client_id", r.ClientID)
	return s.Get(ctx, r.ID)
}

// Update rewrites the intake data. Delivered receptions are closed.
func (s *ReceptionService) Update(ctx context.Context, id uint, in ReceptionInput) (*models.Reception, error) {
	const op = "receptions.update"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return nil, err
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.Open() {
		return nil, apperr.Conflict("reception_closed").WithOp(op)
	}
	err = s.db.WithContext(ctx).Model(&models.Reception{}).Where("id = ?", id).
		Select("client_id", "mechanic_id", "craft_type", "brand", "model", "hull_number", "engine_hours", "reported_issue", "diagnosis").
		Updates(&models.Reception{
			ClientID:      in.ClientID,
			MechanicID:    in.MechanicID,
			CraftType:     strings.TrimSpace(in.CraftType),
			Brand:         in.Brand,
			Model:         in.Model,
			HullNumber:    strings.ToUpper(strings.TrimSpace(in.HullNumber)),
			EngineHours:   in.EngineHours,
			ReportedIssue: in.ReportedIssue,
			Diagnosis:     in.Diagnosis,
		}).Error
	if err != nil {
		return nil, domainError(op, err)
	}
	return s.Get(ctx, id)
}

// Advance moves the reception forward. The write is conditional on the status
// that was read so two advances cannot both succeed from the same state.
func (s *ReceptionService) Advance(ctx context.Context, id uint, to models.ReceptionStatus) (*models.Reception, error) {
	const op = "receptions.advance"
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.CanAdvanceTo(to) {
		return nil, apperr.Conflict("invalid_transition").WithOp(op).
			WithDetails(map[string]string{"from": string(r.Status), "to": string(to)})
	}
	updates := map[string]any{"status": to}
	if to == models.ReceptionDelivered {
		updates["delivered_at"] = s.now().UTC()
	}
	res := s.db.WithContext(ctx).Model(&models.Reception{}).Where("id = ? AND status = ?", id, r.Status).Updates(updates)
	if res.Error != nil {
		return nil, domainError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.Conflict("concurrent_update").WithOp(op)
	}
	if err := writeAudit(ctx, s.db, "reception", id, "status", string(r.Status), string(to)); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	s.log.WithContext(ctx).Info("reception advanced", "id", id, "ticket", r.Ticket, "from", r.Status, "to", to)
	return s.Get(ctx, id)
}

// CreateQuote drafts a pending quote for the reception's client and mechanic.
func (s *ReceptionService) CreateQuote(ctx context.Context, id uint, in ReceptionQuoteInput) (*models.Document, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Status.Open() {
		return nil, apperr.Conflict("reception_closed").WithOp("receptions.create_quote")
	}
	notes := in.Notes
	if notes == "" {
		notes = "Reception " + r.Ticket
	}
	return s.docs.Create(ctx, models.KindQuote, DocumentInput{
		ClientID:    r.ClientID,
		MechanicID:  r.MechanicID,
		ReceptionID: &r.ID,
		Notes:       notes,
		Discount:    in.Discount,
		Lines:       in.Lines,
	})
}

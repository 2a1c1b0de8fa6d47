package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/phone"
	"github.com/maremotors/backoffice/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ClientInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	DocumentID string `json:"document_id" validate:"max=32"`
	Phone      string `json:"phone" validate:"max=40"`
	Email      string `json:"email" validate:"omitempty,email"`
	Address    string `json:"address" validate:"max=255"`
	City       string `json:"city" validate:"max=120"`
	Notes      string `json:"notes"`
}

func (in ClientInput) apply(c *models.Client, region string) {
	c.Name = strings.TrimSpace(in.Name)
	c.DocumentID = strings.TrimSpace(in.DocumentID)
	c.Phone = phone.NormalizeE164(in.Phone, region)
	c.Email = strings.ToLower(strings.TrimSpace(in.Email))
	c.Address = in.Address
	c.City = in.City
	c.Notes = in.Notes
}

type MechanicInput struct {
	Name       string          `json:"name" validate:"required,max=255"`
	Phone      string          `json:"phone" validate:"max=40"`
	Specialty  string          `json:"specialty" validate:"max=120"`
	HourlyRate decimal.Decimal `json:"hourly_rate" validate:"gte=0"`
	Active     *bool           `json:"active,omitempty"`
}

// PartyService manages clients and mechanics.
type PartyService struct {
	db          *gorm.DB
	validate    *validation.Validator
	log         *logger.Logger
	phoneRegion string
}

func NewPartyService(db *gorm.DB, log *logger.Logger) *PartyService {
	return &PartyService{db: db, validate: validation.New(), log: log, phoneRegion: phone.DefaultRegion}
}

// WithPhoneRegion sets the region assumed for numbers without a country prefix.
func (s *PartyService) WithPhoneRegion(region string) *PartyService {
	if region != "" {
		s.phoneRegion = region
	}
	return s
}

func (s *PartyService) ListClients(ctx context.Context, query string, limit, offset int) ([]models.Client, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Client{})
	if term := strings.ToLower(strings.TrimSpace(query)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(name) LIKE ? OR document_id LIKE ? OR phone LIKE ?", like, like, like)
	}
	q = q.Session(&gorm.Session{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domainError("parties.list_clients", err)
	}
	var out []models.Client
	if err := q.Order("name").Scopes(paginate(limit, offset)).Find(&out).Error; err != nil {
		return nil, 0, domainError("parties.list_clients", err)
	}
	return out, total, nil
}

func (s *PartyService) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("client_not_found")
	}
	if err != nil {
		return nil, domainError("parties.get_client", err)
	}
	return &c, nil
}

func (s *PartyService) CreateClient(ctx context.Context, in ClientInput) (*models.Client, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	var c models.Client
	in.apply(&c, s.phoneRegion)
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, domainError("parties.create_client", err)
	}
	s.log.WithContext(ctx).Info("client created", "id", c.ID)
	return &c, nil
}

func (s *PartyService) UpdateClient(ctx context.Context, id uint, in ClientInput) (*models.Client, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	c, err := s.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(c, s.phoneRegion)
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, domainError("parties.update_client", err)
	}
	return c, nil
}

// DeleteClient refuses clients billed on any quote or sale.
func (s *PartyService) DeleteClient(ctx context.Context, id uint) error {
	const op = "parties.delete_client"
	var docs int64
	if err := s.db.WithContext(ctx).Model(&models.Document{}).Where("client_id = ?", id).Count(&docs).Error; err != nil {
		return domainError(op, err)
	}
	if docs > 0 {
		return apperr.Conflict("client_has_documents").WithOp(op).WithDetails(map[string]int64{"documents": docs})
	}
	res := s.db.WithContext(ctx).Delete(&models.Client{}, id)
	if res.Error != nil {
		return domainError(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("client_not_found")
	}
	s.log.WithContext(ctx).Info("client deleted", "id", id)
	return nil
}

// ListMechanics returns every mechanic, or only active ones.
func (s *PartyService) ListMechanics(ctx context.Context, activeOnly bool) ([]models.Mechanic, error) {
	q := s.db.WithContext(ctx).Order("name")
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var out []models.Mechanic
	if err := q.Find(&out).Error; err != nil {
		return nil, domainError("parties.list_mechanics", err)
	}
	return out, nil
}

func (s *PartyService) GetMechanic(ctx context.Context, id uint) (*models.Mechanic, error) {
	var m models.Mechanic
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("mechanic_not_found")
	}
	if err != nil {
		return nil, domainError("parties.get_mechanic", err)
	}
	return &m, nil
}

func (s *PartyService) CreateMechanic(ctx context.Context, in MechanicInput) (*models.Mechanic, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	m := models.Mechanic{
		Name:       strings.TrimSpace(in.Name),
		Phone:      phone.NormalizeE164(in.Phone, s.phoneRegion),
		Specialty:  in.Specialty,
		HourlyRate: in.HourlyRate,
		Active:     true,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, domainError("parties.create_mechanic", err)
	}
	// A false bool is a zero value and Create would let the column default win.
	if in.Active != nil && !*in.Active {
		if err := s.db.WithContext(ctx).Model(&m).Update("active", false).Error; err != nil {
			return nil, domainError("parties.create_mechanic", err)
		}
		m.Active = false
	}
	return &m, nil
}

func (s *PartyService) UpdateMechanic(ctx context.Context, id uint, in MechanicInput) (*models.Mechanic, error) {
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	m, err := s.GetMechanic(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Name = strings.TrimSpace(in.Name)
	m.Phone = phone.NormalizeE164(in.Phone, s.phoneRegion)
	m.Specialty = in.Specialty
	m.HourlyRate = in.HourlyRate
	if in.Active != nil {
		m.Active = *in.Active
	}
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return nil, domainError("parties.update_mechanic", err)
	}
	return m, nil
}

// DeleteMechanic deactivates a mechanic that appears on receptions or documents
// and removes one that does not.
func (s *PartyService) DeleteMechanic(ctx context.Context, id uint) error {
	const op = "parties.delete_mechanic"
	m, err := s.GetMechanic(ctx, id)
	if err != nil {
		return err
	}
	var refs int64
	if err := s.db.WithContext(ctx).Model(&models.Reception{}).Where("mechanic_id = ?", id).Count(&refs).Error; err != nil {
		return domainError(op, err)
	}
	if refs == 0 {
		if err := s.db.WithContext(ctx).Model(&models.Document{}).Where("mechanic_id = ?", id).Count(&refs).Error; err != nil {
			return domainError(op, err)
		}
	}
	if refs > 0 {
		return domainError(op, s.db.WithContext(ctx).Model(m).Update("active", false).Error)
	}
	return domainError(op, s.db.WithContext(ctx).Delete(m).Error)
}

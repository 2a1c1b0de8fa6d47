package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrAlreadyConfigured = errors.New("company_already_configured")

// SettingsInput carries the editable company settings.
type SettingsInput struct {
	BusinessName      string          `json:"business_name" validate:"required,max=255"`
	TaxID             string          `json:"tax_id" validate:"max=40"`
	Address           string          `json:"address" validate:"max=255"`
	Phone             string          `json:"phone" validate:"max=40"`
	Email             string          `json:"email" validate:"omitempty,email"`
	BaseCurrency      string          `json:"base_currency" validate:"required,iso4217"`
	QuoteValidityDays int             `json:"quote_validity_days" validate:"gte=0,lte=365"`
	MaxDiscount       decimal.Decimal `json:"max_discount"`
}

func (in SettingsInput) apply(s *models.Settings) {
	s.BusinessName = strings.TrimSpace(in.BusinessName)
	s.TaxID = in.TaxID
	s.Address = in.Address
	s.Phone = in.Phone
	s.Email = in.Email
	s.BaseCurrency = strings.ToUpper(in.BaseCurrency)
	s.QuoteValidityDays = in.QuoteValidityDays
	s.MaxDiscount = in.MaxDiscount
}

// defaultSettings is what applies until setup has run.
func defaultSettings() models.Settings {
	return models.Settings{
		BusinessName:      "Maremotors",
		BaseCurrency:      "USD",
		QuoteValidityDays: 15,
		MaxDiscount:       decimal.NewFromInt(100),
	}
}

// currentSettings returns the stored settings, or the defaults when none exist.
func currentSettings(ctx context.Context, db *gorm.DB) (models.Settings, error) {
	var s models.Settings
	err := db.WithContext(ctx).Order("id").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return defaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, apperr.Internal("settings.current", err)
	}
	return s, nil
}

type SettingsService struct {
	db       *gorm.DB
	validate *validation.Validator
	log      *logger.Logger
}

func NewSettingsService(db *gorm.DB, log *logger.Logger) *SettingsService {
	return &SettingsService{db: db, validate: validation.New(), log: log}
}

// check adds what the tags cannot express: a blank business name and a
// discount ceiling outside 0..100 or finer than two decimals.
func (s *SettingsService) check(in SettingsInput) error {
	v := s.validate.Struct(in)
	validation.Required("business_name", in.BusinessName, v)
	validation.Percent("max_discount", in.MaxDiscount, v)
	return v.Err()
}

func (s *SettingsService) IsConfigured(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Settings{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Get returns the settings in effect.
func (s *SettingsService) Get(ctx context.Context) (models.Settings, error) {
	return currentSettings(ctx, s.db)
}

// Setup stores the first settings record. A second call fails with ErrAlreadyConfigured.
func (s *SettingsService) Setup(ctx context.Context, in SettingsInput) (*models.Settings, error) {
	const op = "settings.setup"
	if err := s.check(in); err != nil {
		return nil, domainError(op, err)
	}
	configured, err := s.IsConfigured(ctx)
	if err != nil {
		return nil, domainError(op, err)
	}
	if configured {
		return nil, apperr.Wrap(apperr.KindConflict, "already_configured", ErrAlreadyConfigured).WithOp(op)
	}
	settings := models.Settings{}
	in.apply(&settings)
	if err := s.db.WithContext(ctx).Create(&settings).Error; err != nil {
		return nil, domainError(op, err)
	}
	s.log.WithContext(ctx).Info("settings configured", "business_name", settings.BusinessName, "base_currency", settings.BaseCurrency)
	return &settings, nil
}

// Update rewrites the settings, creating the record when setup never ran.
func (s *SettingsService) Update(ctx context.Context, in SettingsInput) (*models.Settings, error) {
	const op = "settings.update"
	if err := s.check(in); err != nil {
		return nil, domainError(op, err)
	}
	var settings models.Settings
	err := s.db.WithContext(ctx).Order("id").First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.Setup(ctx, in)
	}
	if err != nil {
		return nil, domainError(op, err)
	}
	before := settings.MaxDiscount.String()
	in.apply(&settings)
	if err := s.db.WithContext(ctx).Save(&settings).Error; err != nil {
		return nil, domainError(op, err)
	}
	if err := writeAudit(ctx, s.db, "settings", settings.ID, "update", before, settings.MaxDiscount.String()); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	return &settings, nil
}

package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/maremotors/backoffice/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedOptions configures the first admin account and the base currency.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	BaseCurrency  string
	BcryptCost    int
}

var baseUnits = []models.Unit{
	{Name: "piece", Symbol: "pc"},
	{Name: "liter", Symbol: "l"},
	{Name: "hour", Symbol: "h"},
	{Name: "kit", Symbol: "kit"},
	{Name: "meter", Symbol: "m"},
}

var baseCurrencies = []models.Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
}

// Seed inserts the reference data that is missing. Running it twice changes nothing.
func Seed(db *gorm.DB, opts SeedOptions) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, u := range baseUnits {
			if err := tx.Where(models.Unit{Name: u.Name}).FirstOrCreate(&u).Error; err != nil {
				return fmt.Errorf("seed unit %s: %w", u.Name, err)
			}
		}
		base := strings.ToUpper(opts.BaseCurrency)
		if base == "" {
			base = "USD"
		}
		currencies := append([]models.Currency(nil), baseCurrencies...)
		if !hasCurrency(currencies, base) {
			currencies = append(currencies, models.Currency{Code: base, Name: base})
		}
		for _, c := range currencies {
			c.ExchangeRate = decimal.NewFromInt(1)
			if err := tx.Where(models.Currency{Code: c.Code}).FirstOrCreate(&c).Error; err != nil {
				return fmt.Errorf("seed currency %s: %w", c.Code, err)
			}
		}
		if err := seedSettings(tx, base); err != nil {
			return err
		}
		return seedAdmin(tx, opts)
	})
}

func hasCurrency(list []models.Currency, code string) bool {
	for _, c := range list {
		if c.Code == code {
			return true
		}
	}
	return false
}

func seedSettings(tx *gorm.DB, base string) error {
	var count int64
	if err := tx.Model(&models.Settings{}).Count(&count).Error; err != nil {
		return fmt.Errorf("count settings: %w", err)
	}
	if count > 0 {
		return nil
	}
	s := models.Settings{
		BusinessName:      "Maremotors",
		BaseCurrency:      base,
		QuoteValidityDays: 15,
		MaxDiscount:       decimal.NewFromInt(100),
	}
	if err := tx.Create(&s).Error; err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

// seedAdmin creates the admin account unless any admin exists.
func seedAdmin(tx *gorm.DB, opts SeedOptions) error {
	if opts.AdminEmail == "" || opts.AdminPassword == "" {
		return nil
	}
	var admin models.User
	err := tx.Where("role = ?", models.RoleAdmin).First(&admin).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("find admin: %w", err)
	}
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.AdminPassword), cost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin = models.User{
		Email:    strings.ToLower(opts.AdminEmail),
		Name:     "Administrator",
		Password: string(hash),
		Role:     models.RoleAdmin,
		Active:   true,
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

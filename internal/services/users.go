package services

import (
	"context"
	"errors"
	"strings"

	"github.com/maremotors/backoffice/internal/apperr"
	"github.com/maremotors/backoffice/internal/logger"
	"github.com/maremotors/backoffice/internal/models"
	"github.com/maremotors/backoffice/internal/policy"
	"github.com/maremotors/backoffice/internal/validation"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid_credentials")

type UserInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"max=255"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required"`
}

type RoleInput struct {
	Role   string `json:"role" validate:"required"`
	Active *bool  `json:"active,omitempty"`
}

// UserService manages back-office accounts. Role changes drop the cached
// permission profile of the user.
type UserService struct {
	db       *gorm.DB
	gate     *policy.Gate
	validate *validation.Validator
	log      *logger.Logger
	cost     int
}

func NewUserService(db *gorm.DB, gate *policy.Gate, log *logger.Logger) *UserService {
	return &UserService{db: db, gate: gate, validate: validation.New(), log: log, cost: bcrypt.DefaultCost}
}

// HashPassword returns the bcrypt hash stored for a password.
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := s.db.WithContext(ctx).Order("email").Find(&out).Error; err != nil {
		return nil, domainError("users.list", err)
	}
	return out, nil
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	const op = "users.create"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if !policy.ValidRole(in.Role) {
		return nil, apperr.Validation("invalid_role").WithOp(op)
	}
	hash, err := HashPassword(in.Password, s.cost)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	u := models.User{
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Name:     strings.TrimSpace(in.Name),
		Password: hash,
		Role:     in.Role,
		Active:   true,
	}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isDuplicate(err) {
			return nil, apperr.Conflict("email_already_exists").WithOp(op)
		}
		return nil, domainError(op, err)
	}
	if err := writeAudit(ctx, s.db, "user", u.ID, "create", "", u.Role); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	s.log.WithContext(ctx).Info("user created", "id", u.ID, "role", u.Role)
	return &u, nil
}

// SetRole changes the role and optionally the active flag of a user.
func (s *UserService) SetRole(ctx context.Context, id uint, in RoleInput) (*models.User, error) {
	const op = "users.set_role"
	if err := s.validate.Check(in); err != nil {
		return nil, err
	}
	if !policy.ValidRole(in.Role) {
		return nil, apperr.Validation("invalid_role").WithOp(op)
	}
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user_not_found")
		}
		return nil, domainError(op, err)
	}
	before := u.Role
	updates := map[string]any{"role": in.Role}
	if in.Active != nil {
		updates["active"] = *in.Active
	}
	if err := s.db.WithContext(ctx).Model(&u).Updates(updates).Error; err != nil {
		return nil, domainError(op, err)
	}
	if s.gate != nil {
		s.gate.InvalidateUser(id)
	}
	if err := writeAudit(ctx, s.db, "user", id, "role", before, in.Role); err != nil {
		s.log.WithContext(ctx).DatabaseError("audit", err)
	}
	s.log.WithContext(ctx).Info("user role changed", "id", id, "from", before, "to", in.Role)
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, domainError(op, err)
	}
	return &u, nil
}

// Authenticate checks an email and password pair against active users.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ? AND active = ?", strings.ToLower(strings.TrimSpace(email)), true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperr.Internal("users.authenticate", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// Active reports whether the user exists and may sign in. It backs session checks.
func (s *UserService) Active(ctx context.Context, id uint) bool {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", id, true).Count(&count).Error
	return err == nil && count > 0
}

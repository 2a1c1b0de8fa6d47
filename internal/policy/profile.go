package policy

import (
	"context"
	"errors"

	"github.com/maremotors/backoffice/internal/models"
	"gorm.io/gorm"
)

// Profile is a named set of permissions.
type Profile struct {
	Name        string
	permissions []Permission
}

func NewProfile(name string, permissions ...Permission) *Profile {
	return &Profile{Name: name, permissions: permissions}
}

func (p *Profile) Permissions() []Permission {
	return append([]Permission(nil), p.permissions...)
}

// HasPermission checks if the profile grants requested, wildcards included.
func (p *Profile) HasPermission(requested Permission) bool {
	for _, perm := range p.permissions {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// catalog covers products, services, units and currencies.
var roleProfiles = map[string]*Profile{
	models.RoleReception: NewProfile(models.RoleReception,
		"reception:*", "client:*", "quote:*", "mechanic:view", "mechanic:list",
		"catalog:view", "catalog:list", "inventory:view",
	),
	models.RoleMechanic: NewProfile(models.RoleMechanic,
		"reception:view", "reception:list", "reception:update",
		"catalog:view", "catalog:list", "inventory:view", "client:view",
	),
	models.RoleSales: NewProfile(models.RoleSales,
		"quote:*", "sale:*", "client:*", "catalog:view", "catalog:list",
		"inventory:view", "report:view", "mechanic:list",
	),
	models.RoleAdmin: NewProfile(models.RoleAdmin, PermissionSuperAdmin),
}

// ProfileForRole returns the static profile of a role, nil for unknown roles.
func ProfileForRole(role string) *Profile {
	return roleProfiles[role]
}

// ValidRole reports whether role has a profile.
func ValidRole(role string) bool {
	_, ok := roleProfiles[role]
	return ok
}

// Resolver maps a user to their profile. A nil profile means no access.
type Resolver interface {
	Resolve(ctx context.Context, userID uint) (*Profile, error)
}

// RoleResolver reads the role of active users from the database.
type RoleResolver struct {
	db *gorm.DB
}

func NewRoleResolver(db *gorm.DB) *RoleResolver { return &RoleResolver{db: db} }

func (r *RoleResolver) Resolve(ctx context.Context, userID uint) (*Profile, error) {
	var u models.User
	err := r.db.WithContext(ctx).Select("id", "role", "active").First(&u, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, nil
	}
	return ProfileForRole(u.Role), nil
}

package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maremotors/backoffice/internal/auth"
	"github.com/maremotors/backoffice/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPermissionMatches(t *testing.T) {
	tests := []struct {
		granted, requested Permission
		want               bool
	}{
		{PermissionSuperAdmin, "sale:approve", true},
		{"quote:*", "quote:approve", true},
		{"quote:*", "sale:approve", false},
		{"client:view", "client:view", true},
		{"client:view", "client:delete", false},
		{"bogus", "bogus:view", false},
	}
	for _, tt := range tests {
		if got := tt.granted.Matches(tt.requested); got != tt.want {
			t.Errorf("%s matches %s = %v, want %v", tt.granted, tt.requested, got, tt.want)
		}
	}
}

func TestRoleProfiles(t *testing.T) {
	tests := []struct {
		role     string
		resource string
		action   Action
		want     bool
	}{
		{models.RoleAdmin, "settings", ActionUpdate, true},
		{models.RoleSales, "sale", ActionApprove, true},
		{models.RoleSales, "settings", ActionUpdate, false},
		{models.RoleReception, "quote", ActionCreate, true},
		{models.RoleReception, "sale", ActionApprove, false},
		{models.RoleMechanic, "reception", ActionUpdate, true},
		{models.RoleMechanic, "reception", ActionDelete, false},
		{models.RoleMechanic, "catalog", ActionView, true},
	}
	for _, tt := range tests {
		p := ProfileForRole(tt.role)
		if got := p.HasPermission(NewPermission(tt.resource, tt.action)); got != tt.want {
			t.Errorf("%s %s:%s = %v, want %v", tt.role, tt.resource, tt.action, got, tt.want)
		}
	}
	if ValidRole("owner") {
		t.Fatal("unknown role reported valid")
	}
}

type countingResolver struct {
	calls   int
	profile *Profile
}

func (c *countingResolver) Resolve(context.Context, uint) (*Profile, error) {
	c.calls++
	return c.profile, nil
}

func TestCachedResolver(t *testing.T) {
	inner := &countingResolver{profile: ProfileForRole(models.RoleSales)}
	cached := NewCachedResolver(inner, time.Minute)
	now := time.Now()
	cached.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := cached.Resolve(context.Background(), 1); err != nil {
			t.Fatalf("resolve: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected 1 inner call, got %d", inner.calls)
	}

	cached.Invalidate(1)
	_, _ = cached.Resolve(context.Background(), 1)
	now = now.Add(2 * time.Minute)
	_, _ = cached.Resolve(context.Background(), 1)
	if inner.calls != 3 {
		t.Fatalf("expected 3 inner calls, got %d", inner.calls)
	}
}

type slowResolver struct {
	calls atomic.Int32
}

func (s *slowResolver) Resolve(context.Context, uint) (*Profile, error) {
	s.calls.Add(1)
	time.Sleep(20 * time.Millisecond)
	return ProfileForRole(models.RoleMechanic), nil
}

func TestCachedResolverCollapsesConcurrentMisses(t *testing.T) {
	inner := &slowResolver{}
	cached := NewCachedResolver(inner, time.Minute)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := cached.Resolve(context.Background(), 9)
			if err != nil || p == nil || p.Name != models.RoleMechanic {
				t.Errorf("unexpected profile %v err %v", p, err)
			}
		}()
	}
	wg.Wait()
	if got := inner.calls.Load(); got >= workers {
		t.Fatalf("expected concurrent misses to share lookups, got %d calls", got)
	}
}

func TestRoleResolverAndMiddleware(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sales := models.User{Email: "s@maremotors.test", Password: "x", Role: models.RoleSales, Active: true}
	mech := models.User{Email: "m@maremotors.test", Password: "x", Role: models.RoleMechanic, Active: true}
	for _, u := range []*models.User{&sales, &mech} {
		if err := db.Create(u).Error; err != nil {
			t.Fatalf("user: %v", err)
		}
	}

	g := NewGate(db, time.Minute)
	h := g.RequirePermission("sale", ActionApprove)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name string
		uid  uint
		want int
	}{
		{"sales may approve", sales.ID, http.StatusOK},
		{"mechanic may not", mech.ID, http.StatusForbidden},
		{"anonymous", 0, http.StatusForbidden},
		{"unknown user", 999, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/sales/1/status", nil)
			if tt.uid != 0 {
				req = req.WithContext(auth.WithUserID(req.Context(), tt.uid))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("expected %d got %d", tt.want, rec.Code)
			}
		})
	}

	// A deactivated user loses access once the cache entry is dropped.
	if err := db.Model(&sales).Update("active", false).Error; err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	g.InvalidateUser(sales.ID)
	ctx := auth.WithUserID(context.Background(), sales.ID)
	if g.Can(ctx, "sale", ActionApprove) {
		t.Fatal("inactive user kept access")
	}
}

package guard

import (
	"testing"

	"resqnet-web/pkg/models"
)

func TestDecide(t *testing.T) {
	adminOnly := Target{Path: "/admin/summary", AllowedRoles: Roles(models.RoleAdmin)}
	anyUser := Target{Path: "/dashboard"}

	cases := []struct {
		name          string
		authenticated bool
		role          models.Role
		target        Target
		want          Outcome
		location      string
	}{
		{"anonymous to restricted", false, "", adminOnly, RedirectLogin, LoginPath},
		{"anonymous to open", false, "", anyUser, RedirectLogin, LoginPath},
		{"anonymous with stale role", false, models.RoleAdmin, adminOnly, RedirectLogin, LoginPath},
		{"reporter to admin page", true, models.RoleReporter, adminOnly, RedirectDefault, DefaultPath},
		{"admin without restriction", true, models.RoleAdmin, anyUser, Allow, "/dashboard"},
		{"admin to admin page", true, models.RoleAdmin, adminOnly, Allow, "/admin/summary"},
		{"multi-role list", true, models.RoleResponder, Target{Path: "/requests", AllowedRoles: Roles(models.RoleResponder, models.RoleAdmin)}, Allow, "/requests"},
		{"unknown role restricted", true, "", adminOnly, RedirectDefault, DefaultPath},
		{"empty allow-list admits nobody", true, models.RoleAdmin, Target{Path: "/x", AllowedRoles: Roles()}, RedirectDefault, DefaultPath},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.authenticated, tc.role, tc.target)
			if d.Outcome != tc.want || d.Location != tc.location {
				t.Fatalf("Decide=%v %q, want %v %q", d.Outcome, d.Location, tc.want, tc.location)
			}
			if d.Allowed() != (tc.want == Allow) {
				t.Fatalf("Allowed()=%v", d.Allowed())
			}
		})
	}
}

func TestLandingPath(t *testing.T) {
	if got := LandingPath(models.RoleAdmin); got != AdminLandingPath {
		t.Fatalf("admin landing=%q", got)
	}
	for _, r := range []models.Role{models.RoleReporter, models.RoleResponder, ""} {
		if got := LandingPath(r); got != DefaultPath {
			t.Fatalf("%q landing=%q", r, got)
		}
	}
}

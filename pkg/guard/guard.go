// Package guard decides whether a navigation may proceed for the current session.
package guard

import (
	"resqnet-web/pkg/models"
)

const (
	// LoginPath is the login entry point.
	LoginPath = "/login"
	// DefaultPath is the default authenticated landing page.
	DefaultPath = "/dashboard"
	// AdminLandingPath is where admins land after logging in.
	AdminLandingPath = "/admin/dashboard"
)

// Outcome of a guard decision.
type Outcome int

const (
	Allow Outcome = iota
	RedirectLogin
	RedirectDefault
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDefault:
		return "redirect_default"
	}
	return "unknown"
}

// Target is a navigation target. A nil AllowedRoles admits every
// authenticated user; an empty non-nil list admits nobody.
type Target struct {
	Path         string
	AllowedRoles []models.Role
}

// Decision 守卫决策
type Decision struct {
	Outcome  Outcome
	Location string
}

// Allowed reports whether the target may render.
func (d Decision) Allowed() bool { return d.Outcome == Allow }

// Decide is the guard. It holds no state and must be re-run on every
// navigation and whenever the session changes.
func Decide(authenticated bool, role models.Role, target Target) Decision {
	if !authenticated {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}
	if target.AllowedRoles != nil && !role.In(target.AllowedRoles) {
		return Decision{Outcome: RedirectDefault, Location: DefaultPath}
	}
	return Decision{Outcome: Allow, Location: target.Path}
}

// Roles builds an allow-list.
func Roles(roles ...models.Role) []models.Role {
	if roles == nil {
		return []models.Role{}
	}
	return roles
}

// LandingPath is where a freshly logged in user is sent.
func LandingPath(role models.Role) string {
	if role == models.RoleAdmin {
		return AdminLandingPath
	}
	return DefaultPath
}

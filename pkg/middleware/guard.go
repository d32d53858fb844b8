package middleware

import (
	"net/http"

	"resqnet-web/pkg/guard"
	"resqnet-web/pkg/models"
	"resqnet-web/pkg/utils"
)

// RequireRoute gates a route with the guard. Called without roles it admits
// any authenticated user.
//
// Page navigations (GET/HEAD) are redirected the way the browser would be.
// Other methods get a 401/403 envelope whose details carry the redirect target.
func RequireRoute(roles ...models.Role) func(http.Handler) http.Handler {
	var allowed []models.Role
	if len(roles) > 0 {
		allowed = guard.Roles(roles...)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authenticated, role := false, models.Role("")
			if page, ok := PageFromContext(r.Context()); ok {
				st := page.Session.State()
				authenticated, role = st.Authenticated, st.Role()
			}

			d := guard.Decide(authenticated, role, guard.Target{Path: r.URL.Path, AllowedRoles: allowed})
			if d.Allowed() {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodGet || r.Method == http.MethodHead {
				utils.WriteRedirect(w, r, d.Location)
				return
			}
			switch d.Outcome {
			case guard.RedirectLogin:
				utils.WriteErrorResponseWithCode(w, http.StatusUnauthorized, utils.CodeUnauthorized,
					"Please log in to continue", d.Location)
			default:
				utils.WriteErrorResponseWithCode(w, http.StatusForbidden, utils.CodeForbidden,
					"Your role cannot access this page", d.Location)
			}
		})
	}
}

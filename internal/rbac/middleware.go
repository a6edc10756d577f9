package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// RequireOwnerOr lets the request through when ownPerm is held and isOwner
// reports the caller owns the resource, or when allPerm is held.
func RequireOwnerOr(ownPerm, allPerm string, isOwner func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if defaultChecker.Has(role, allPerm) || (defaultChecker.Has(role, ownPerm) && isOwner(r)) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

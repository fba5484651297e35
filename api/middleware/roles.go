package middleware

import (
	"net/http"

	"github.com/angelmondragon/microcommerce-backend/api/responses"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/enums"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

// RequireRole admits only callers whose token role is one of allowed. Mount it after Auth.
func RequireRole(logg *logger.Logger, allowed ...enums.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			role := enums.UserRole(RoleFromContext(ctx))
			for _, candidate := range allowed {
				if role == candidate {
					next.ServeHTTP(w, r)
					return
				}
			}
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"role": role.String(),
					"path": r.URL.Path,
				}), "auth.role_denied")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
		})
	}
}

package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/microcommerce-backend/pkg/config"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

const maxSessionKeyLength = 128

// SessionKey resolves the guest session key from the configured header, falling
// back to the cookie. Nothing is generated here; an absent key stays absent.
func SessionKey(cfg config.CartConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	header := cfg.SessionHeader
	if header == "" {
		header = "X-Session-Key"
	}
	cookieName := cfg.SessionCookie
	if cookieName == "" {
		cookieName = "session_key"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(header))
			if key == "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					key = strings.TrimSpace(cookie.Value)
				}
			}
			if key == "" || len(key) > maxSessionKeyLength {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithSessionKey(r.Context(), key)
			if logg != nil {
				ctx = logg.WithSessionKey(ctx, key)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/microcommerce-backend/api/responses"
	pkgerrors "github.com/angelmondragon/microcommerce-backend/pkg/errors"
	"github.com/angelmondragon/microcommerce-backend/pkg/logger"
)

// Counter is a fixed-window counter; IncrWithTTL must set the TTL on first increment.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// AuthRateLimitPolicy throttles one auth surface (login, register) by caller IP and by submitted email.
type AuthRateLimitPolicy struct {
	surface    string
	window     time.Duration
	ipLimit    int64
	emailLimit int64
}

func NewAuthRateLimitPolicy(surface string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	surface = strings.ToLower(strings.TrimSpace(surface))
	if surface == "" {
		surface = "auth"
	}
	return AuthRateLimitPolicy{
		surface:    surface,
		window:     window,
		ipLimit:    int64(ipLimit),
		emailLimit: int64(emailLimit),
	}
}

func (p AuthRateLimitPolicy) active() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// bucket is one counter checked for a request.
type bucket struct {
	dimension string
	subject   string
	limit     int64
}

func (p AuthRateLimitPolicy) key(b bucket) string {
	return p.surface + ":" + b.dimension + ":" + b.subject
}

// AuthRateLimit rejects requests with 429 once any bucket exceeds its limit inside the window.
// Email subjects are hashed so raw addresses never reach redis or the logs.
func AuthRateLimit(policy AuthRateLimitPolicy, counter Counter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if counter == nil || !policy.active() {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			buckets, err := policy.bucketsFor(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}

			for _, b := range buckets {
				count, err := counter.IncrWithTTL(ctx, policy.key(b), policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiter unavailable"))
					return
				}
				if count > b.limit {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"surface":        policy.surface,
							"dimension":      b.dimension,
							"subject":        b.subject,
							"attempts":       count,
							"limit":          b.limit,
							"window_seconds": int(policy.window.Seconds()),
						}), "auth.rate_limited")
					}
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later"))
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bucketsFor peeks at the JSON body for the email and restores it for the handler.
func (p AuthRateLimitPolicy) bucketsFor(r *http.Request) ([]bucket, error) {
	buckets := make([]bucket, 0, 2)
	if p.ipLimit > 0 {
		if ip := remoteIP(r); ip != "" {
			buckets = append(buckets, bucket{dimension: "ip", subject: ip, limit: p.ipLimit})
		}
	}
	if p.emailLimit <= 0 || r.Body == nil {
		return buckets, nil
	}

	raw, err := readCappedBody(nil, r)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if email := strings.ToLower(strings.TrimSpace(payload.Email)); email != "" {
			sum := sha256.Sum256([]byte(email))
			buckets = append(buckets, bucket{dimension: "email", subject: hex.EncodeToString(sum[:]), limit: p.emailLimit})
		}
	}
	return buckets, nil
}

// remoteIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the socket address.
func remoteIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

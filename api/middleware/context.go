package middleware

import "context"

type ctxKey int

const (
	keyUserID ctxKey = iota
	keyRole
	keyAccessID
	keySessionKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, v string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, keyUserID) }

func RoleFromContext(ctx context.Context) string { return stringValue(ctx, keyRole) }

// AccessIDFromContext returns the jti of the bearer token, used to revoke the session.
func AccessIDFromContext(ctx context.Context) string { return stringValue(ctx, keyAccessID) }

// SessionKeyFromContext returns the guest session key resolved by SessionKey.
func SessionKeyFromContext(ctx context.Context) string { return stringValue(ctx, keySessionKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, keyUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, keyRole, role)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return withString(ctx, keyAccessID, accessID)
}

func WithSessionKey(ctx context.Context, sessionKey string) context.Context {
	return withString(ctx, keySessionKey, sessionKey)
}

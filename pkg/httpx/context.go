package httpx

import "context"

type ctxKey string

const (
	// CtxKeyUserID carries the authenticated user's id. Set by the
	// authentication middleware and read by per-user rate limiting.
	CtxKeyUserID ctxKey = "user_id"
)

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyUserID).(string); ok {
		return v
	}
	return ""
}

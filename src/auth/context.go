package auth

import (
	"context"
)

type contextKey string

const UserKey contextKey = "user"

// GetUserIDFromContext returns the caller identity placed on the request
// context by Middleware.
func GetUserIDFromContext(ctx context.Context) (uint, bool) {
	userID, ok := ctx.Value(UserKey).(uint)
	return userID, ok
}

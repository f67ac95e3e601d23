package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

// GetUserFromContext returns the user id stored by the gateway middleware.
func GetUserFromContext(ctx context.Context) (uuid.UUID, error) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok {
		return uuid.UUID{}, errors.New("internal/auth: user id missing from context")
	}
	return userID, nil
}

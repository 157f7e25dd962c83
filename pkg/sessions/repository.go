package sessions

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for login-token data access
type Repository interface {
	// Add a login token for a user
	Add(ctx context.Context, userID uuid.UUID, token LoginToken) error

	// List all login tokens for a user
	FindUserLoginTokens(ctx context.Context, userID uuid.UUID) ([]LoginToken, error)

	// Remove all resume-type tokens for a user except the one with the
	// given hash. Personal access tokens are never touched.
	PruneLoginTokensExcept(ctx context.Context, userID uuid.UUID, currentTokenHash string) (PruneResult, error)

	// Remove a single token by hash
	Remove(ctx context.Context, userID uuid.UUID, tokenHash string) error
}

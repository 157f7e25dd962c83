package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemRepository_AddAndFind(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	userID := uuid.New()

	now := time.Now().UTC()
	err := repo.Add(ctx, userID, LoginToken{Hash: "h1", Type: TokenTypeResume, CreatedAt: now})
	require.NoError(t, err)

	// Duplicate hash should fail
	err = repo.Add(ctx, userID, LoginToken{Hash: "h1", Type: TokenTypeResume, CreatedAt: now})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	tokens, err := repo.FindUserLoginTokens(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "h1", tokens[0].Hash)
}

func TestInMemRepository_PruneLoginTokensExcept(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "current", Type: TokenTypeResume, CreatedAt: now}))
	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "other1", Type: TokenTypeResume, CreatedAt: now}))
	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "other2", Type: TokenTypeResume, CreatedAt: now}))
	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "pat1", Type: TokenTypePersonalAccess, Name: "ci", CreatedAt: now}))

	result, err := repo.PruneLoginTokensExcept(ctx, userID, "current")
	require.NoError(t, err)
	assert.Equal(t, 2, result.ModifiedCount)

	tokens, err := repo.FindUserLoginTokens(ctx, userID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	hashes := []string{tokens[0].Hash, tokens[1].Hash}
	assert.Contains(t, hashes, "current")
	assert.Contains(t, hashes, "pat1")
}

func TestInMemRepository_PruneNothingToRemove(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "current", Type: TokenTypeResume, CreatedAt: time.Now().UTC()}))

	result, err := repo.PruneLoginTokensExcept(ctx, userID, "current")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ModifiedCount)
}

func TestInMemRepository_Remove(t *testing.T) {
	repo := NewInMemRepository()
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Add(ctx, userID, LoginToken{Hash: "h1", Type: TokenTypeResume, CreatedAt: time.Now().UTC()}))
	require.NoError(t, repo.Remove(ctx, userID, "h1"))

	err := repo.Remove(ctx, userID, "h1")
	assert.Error(t, err)
}

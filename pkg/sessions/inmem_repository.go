package sessions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemRepository implements Repository using in-memory storage
type InMemRepository struct {
	mutex  sync.RWMutex
	tokens map[uuid.UUID][]LoginToken
}

// NewInMemRepository creates a new in-memory login-token repository
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{
		tokens: make(map[uuid.UUID][]LoginToken),
	}
}

// Add stores a login token for a user
func (r *InMemRepository) Add(ctx context.Context, userID uuid.UUID, token LoginToken) error {
	if token.Hash == "" {
		return fmt.Errorf("token hash cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.tokens[userID] {
		if existing.Hash == token.Hash {
			return fmt.Errorf("login token already exists for user %s", userID)
		}
	}

	r.tokens[userID] = append(r.tokens[userID], token)
	return nil
}

// FindUserLoginTokens returns all login tokens for a user
func (r *InMemRepository) FindUserLoginTokens(ctx context.Context, userID uuid.UUID) ([]LoginToken, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	tokens := make([]LoginToken, len(r.tokens[userID]))
	copy(tokens, r.tokens[userID])
	return tokens, nil
}

// PruneLoginTokensExcept removes every resume-type token for the user except
// the one matching currentTokenHash. The removal happens in one critical
// section so a concurrent prune cannot double count.
func (r *InMemRepository) PruneLoginTokensExcept(ctx context.Context, userID uuid.UUID, currentTokenHash string) (PruneResult, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var kept []LoginToken
	removed := 0
	for _, token := range r.tokens[userID] {
		if token.IsPersonalAccess() || token.Hash == currentTokenHash {
			kept = append(kept, token)
			continue
		}
		removed++
	}

	r.tokens[userID] = kept
	return PruneResult{ModifiedCount: removed}, nil
}

// Remove deletes a single token by hash
func (r *InMemRepository) Remove(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	tokens := r.tokens[userID]
	for i, token := range tokens {
		if token.Hash == tokenHash {
			r.tokens[userID] = append(tokens[:i], tokens[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("login token not found for user %s", userID)
}

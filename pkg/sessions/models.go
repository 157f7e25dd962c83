package sessions

import (
	"time"
)

// TokenType classifies a stored login token
type TokenType string

const (
	// TokenTypeResume is a regular login session token
	TokenTypeResume TokenType = "resume"
	// TokenTypePersonalAccess is a long-lived API token; never pruned by
	// second-factor enrollment
	TokenTypePersonalAccess TokenType = "personalAccessToken"
)

// LoginToken represents one stored login token for a user. Only the hash of
// the token is ever stored.
type LoginToken struct {
	Hash      string    `json:"hash"`
	Type      TokenType `json:"type"`
	Name      string    `json:"name,omitempty"` // set for personal access tokens
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used"`
}

// IsPersonalAccess reports whether the token survives session pruning
func (t LoginToken) IsPersonalAccess() bool {
	return t.Type == TokenTypePersonalAccess
}

// PruneResult reports the outcome of a prune operation
type PruneResult struct {
	ModifiedCount int
}

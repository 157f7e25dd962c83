package twofactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSha256Hasher(t *testing.T) {
	h := &Sha256Hasher{}

	assert.Equal(t, "sha256", h.Name())

	// Deterministic, salt-independent: hashes stored under the historical
	// scheme keep verifying
	assert.Equal(t, h.Hash("AAAA2222", ""), h.Hash("AAAA2222", "ignored"))
	assert.NotEqual(t, h.Hash("AAAA2222", ""), h.Hash("BBBB3333", ""))
	assert.Len(t, h.Hash("AAAA2222", ""), 64)
}

func TestPbkdf2Hasher(t *testing.T) {
	h := NewPbkdf2Hasher()

	assert.Equal(t, "pbkdf2", h.Name())

	assert.Equal(t, h.Hash("AAAA2222", "salt"), h.Hash("AAAA2222", "salt"))
	assert.NotEqual(t, h.Hash("AAAA2222", "salt"), h.Hash("AAAA2222", "other"))
	assert.NotEqual(t, h.Hash("AAAA2222", "salt"), h.Hash("BBBB3333", "salt"))
	assert.Len(t, h.Hash("AAAA2222", "salt"), 64)
}

package twofactor

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/pbkdf2"
)

// CodeHasher hashes backup codes. The hash must be deterministic for a given
// plaintext (and per-user salt) so that ConsumeBackupHash can re-derive the
// stored hash from a submitted code.
type CodeHasher interface {
	// Name identifies the hashing scheme
	Name() string

	// Hash derives the storable hash of a normalized backup code. salt is
	// the per-user salt from the record; unsalted schemes ignore it.
	Hash(code, salt string) string
}

// Sha256Hasher hashes backup codes with plain SHA-256. Backup codes carry 40
// bits of entropy from a CSPRNG, so an unsalted digest is the conventional
// scheme; it is what the surrounding chat server used historically.
type Sha256Hasher struct{}

// Name implements CodeHasher.Name
func (h *Sha256Hasher) Name() string {
	return "sha256"
}

// Hash implements CodeHasher.Hash
func (h *Sha256Hasher) Hash(code, salt string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// Pbkdf2Hasher hashes backup codes with PBKDF2-SHA256 and the per-user salt
// stored on the record. Generation and verification use the same salt, so
// the derivation stays deterministic per user.
type Pbkdf2Hasher struct {
	iterations int
	keyLength  int
}

// NewPbkdf2Hasher creates a PBKDF2 hasher with default parameters
func NewPbkdf2Hasher() *Pbkdf2Hasher {
	return &Pbkdf2Hasher{
		iterations: 10000,
		keyLength:  32,
	}
}

// Name implements CodeHasher.Name
func (h *Pbkdf2Hasher) Name() string {
	return "pbkdf2"
}

// Hash implements CodeHasher.Hash
func (h *Pbkdf2Hasher) Hash(code, salt string) string {
	key := pbkdf2.Key([]byte(code), []byte(salt), h.iterations, h.keyLength, sha256.New)
	return hex.EncodeToString(key)
}

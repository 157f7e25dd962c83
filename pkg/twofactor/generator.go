package twofactor

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// BackupCodeCount is the batch size; the hash set on a record is always
	// empty or exactly this size
	BackupCodeCount = 12

	// backupCodeLength of 8 characters over a 32-character alphabet gives
	// 40 bits per code, enough to make online brute force infeasible while
	// staying typeable
	backupCodeLength = 8
)

// backupCodeAlphabet avoids 0/O and 1/I so codes survive being read aloud
// or written down
const backupCodeAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// BackupCodeBatch holds a freshly generated set of one-time recovery codes.
// PlainCodes are returned to the enrolling user exactly once and never
// persisted; only Hashes enter the repository.
type BackupCodeBatch struct {
	PlainCodes []string
	Hashes     []string
}

// BackupCodeGenerator produces batches of one-time recovery codes
type BackupCodeGenerator struct {
	hasher CodeHasher
}

// NewBackupCodeGenerator creates a generator using the given hasher
func NewBackupCodeGenerator(hasher CodeHasher) *BackupCodeGenerator {
	return &BackupCodeGenerator{hasher: hasher}
}

// Generate produces a batch of exactly BackupCodeCount codes with their
// hashes. salt is the per-user salt passed through to the hasher.
func (g *BackupCodeGenerator) Generate(salt string) (BackupCodeBatch, error) {
	batch := BackupCodeBatch{
		PlainCodes: make([]string, 0, BackupCodeCount),
		Hashes:     make([]string, 0, BackupCodeCount),
	}

	for i := 0; i < BackupCodeCount; i++ {
		code, err := randomCode(backupCodeLength)
		if err != nil {
			return BackupCodeBatch{}, fmt.Errorf("failed to generate backup code: %w", err)
		}
		batch.PlainCodes = append(batch.PlainCodes, code)
		batch.Hashes = append(batch.Hashes, g.hasher.Hash(code, salt))
	}

	return batch, nil
}

func randomCode(length int) (string, error) {
	result := make([]byte, length)
	max := big.NewInt(int64(len(backupCodeAlphabet)))
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = backupCodeAlphabet[n.Int64()]
	}
	return string(result), nil
}

package twofactor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBackupCodes(t *testing.T) {
	hasher := &Sha256Hasher{}
	g := NewBackupCodeGenerator(hasher)

	batch, err := g.Generate("")
	require.NoError(t, err)
	require.Len(t, batch.PlainCodes, BackupCodeCount)
	require.Len(t, batch.Hashes, BackupCodeCount)

	for i, code := range batch.PlainCodes {
		assert.Len(t, code, 8)
		for _, c := range code {
			assert.Contains(t, backupCodeAlphabet, string(c))
		}
		assert.Equal(t, hasher.Hash(code, ""), batch.Hashes[i])
	}
}

func TestGenerateBackupCodesAvoidsAmbiguousCharacters(t *testing.T) {
	g := NewBackupCodeGenerator(&Sha256Hasher{})

	batch, err := g.Generate("")
	require.NoError(t, err)

	for _, code := range batch.PlainCodes {
		assert.False(t, strings.ContainsAny(code, "01OIoi"), "code %q contains an ambiguous character", code)
	}
}

func TestGenerateBackupCodesAreDistinct(t *testing.T) {
	g := NewBackupCodeGenerator(&Sha256Hasher{})

	batch, err := g.Generate("")
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, code := range batch.PlainCodes {
		assert.False(t, seen[code], "duplicate code %q in one batch", code)
		seen[code] = true
	}
}

func TestGenerateBackupCodesUseSalt(t *testing.T) {
	hasher := NewPbkdf2Hasher()
	g := NewBackupCodeGenerator(hasher)

	batch, err := g.Generate("user-salt")
	require.NoError(t, err)

	for i, code := range batch.PlainCodes {
		assert.Equal(t, hasher.Hash(code, "user-salt"), batch.Hashes[i])
		assert.NotEqual(t, hasher.Hash(code, "other-salt"), batch.Hashes[i])
	}
}

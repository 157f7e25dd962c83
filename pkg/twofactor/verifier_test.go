package twofactor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestVerifyTotpCode(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now)))
	secret := "JBSWY3DPEHPK3PXP"

	code, err := v.GeneratePasscode(secret)
	require.NoError(t, err)

	result := v.Verify(VerificationRequest{Secret: secret, Code: code})
	assert.True(t, result.OK)
	assert.Empty(t, result.UsedBackupHash)

	result = v.Verify(VerificationRequest{Secret: secret, Code: "000000"})
	assert.False(t, result.OK)
}

func TestVerifyAcceptsAdjacentWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	secret := "JBSWY3DPEHPK3PXP"

	// Code from the previous 30s step still validates with skew 1
	earlier := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now.Add(-30*time.Second))))
	code, err := earlier.GeneratePasscode(secret)
	require.NoError(t, err)

	v := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now)))
	result := v.Verify(VerificationRequest{Secret: secret, Code: code})
	assert.True(t, result.OK)

	// Two steps back is outside the window
	stale := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now.Add(-60*time.Second))))
	staleCode, err := stale.GeneratePasscode(secret)
	require.NoError(t, err)
	if staleCode != code {
		result = v.Verify(VerificationRequest{Secret: secret, Code: staleCode})
		assert.False(t, result.OK)
	}
}

func TestVerifyNormalizesDigits(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now)))
	secret := "JBSWY3DPEHPK3PXP"

	code, err := v.GeneratePasscode(secret)
	require.NoError(t, err)

	spaced := code[:3] + " " + code[3:]
	result := v.Verify(VerificationRequest{Secret: secret, Code: spaced})
	assert.True(t, result.OK)
}

func TestVerifyTempSecret(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	v := NewVerifier(&Sha256Hasher{}, WithClock(fixedClock(now)))
	tempSecret := "JBSWY3DPEHPK3PXP"

	code, err := v.GeneratePasscode(tempSecret)
	require.NoError(t, err)

	result := v.Verify(VerificationRequest{TempSecret: tempSecret, Code: code})
	assert.True(t, result.OK)

	// Expired temp secrets are rejected even with a valid code
	result = v.Verify(VerificationRequest{
		TempSecret:          tempSecret,
		TempSecretExpiresAt: now.Add(-time.Minute),
		Code:                code,
	})
	assert.False(t, result.OK)

	// A future expiry still validates
	result = v.Verify(VerificationRequest{
		TempSecret:          tempSecret,
		TempSecretExpiresAt: now.Add(time.Minute),
		Code:                code,
	})
	assert.True(t, result.OK)
}

func TestVerifyBackupCode(t *testing.T) {
	hasher := &Sha256Hasher{}
	v := NewVerifier(hasher)

	hashes := []string{
		hasher.Hash("AAAA2222", ""),
		hasher.Hash("BBBB3333", ""),
	}

	result := v.Verify(VerificationRequest{Code: "BBBB3333", BackupHashes: hashes})
	assert.True(t, result.OK)
	assert.Equal(t, hashes[1], result.UsedBackupHash)

	// Typed lowercase with a separator
	result = v.Verify(VerificationRequest{Code: "bbbb-3333", BackupHashes: hashes})
	assert.True(t, result.OK)
	assert.Equal(t, hashes[1], result.UsedBackupHash)

	result = v.Verify(VerificationRequest{Code: "CCCC4444", BackupHashes: hashes})
	assert.False(t, result.OK)
	assert.Empty(t, result.UsedBackupHash)
}

func TestVerifyBackupCodeSalted(t *testing.T) {
	hasher := NewPbkdf2Hasher()
	v := NewVerifier(hasher)

	hashes := []string{hasher.Hash("AAAA2222", "salt-1")}

	result := v.Verify(VerificationRequest{Code: "AAAA2222", BackupHashes: hashes, Salt: "salt-1"})
	assert.True(t, result.OK)

	result = v.Verify(VerificationRequest{Code: "AAAA2222", BackupHashes: hashes, Salt: "salt-2"})
	assert.False(t, result.OK)
}

func TestVerifyPrefersTotpOverBackup(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	hasher := &Sha256Hasher{}
	v := NewVerifier(hasher, WithClock(fixedClock(now)))
	secret := "JBSWY3DPEHPK3PXP"

	code, err := v.GeneratePasscode(secret)
	require.NoError(t, err)

	// A code that happens to hash into the backup set must not be consumed
	// when it is also the current passcode
	hashes := []string{hasher.Hash(code, "")}
	result := v.Verify(VerificationRequest{Secret: secret, Code: code, BackupHashes: hashes})
	assert.True(t, result.OK)
	assert.Empty(t, result.UsedBackupHash)
}

func TestVerifyEmptyCode(t *testing.T) {
	hasher := &Sha256Hasher{}
	v := NewVerifier(hasher)

	result := v.Verify(VerificationRequest{
		Secret:       "JBSWY3DPEHPK3PXP",
		Code:         "",
		BackupHashes: []string{hasher.Hash("AAAA2222", "")},
	})
	assert.False(t, result.OK)
}

package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"strings"
)

// NormalizeDigits strips every non-digit character from a submitted TOTP
// passcode. Users paste codes with spaces or dashes; the comparison always
// runs on the bare digits.
func NormalizeDigits(code string) string {
	var b strings.Builder
	for _, r := range code {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeBackupCode uppercases a backup code and strips separator
// characters. Backup codes keep their own alphabet, only the formatting is
// normalized.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	return strings.ReplaceAll(code, " ", "")
}

// GenerateRandomString generates a random alphanumeric string of the given length
func GenerateRandomString(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			panic(err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result)
}

// HashEmail returns the hex-encoded SHA-256 digest of an email address,
// used when an email must be referenced without exposing it.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])
}

// MaskEmail masks the local part of an email address for display,
// e.g. "someone@example.com" becomes "s*****e@example.com".
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 2 {
		return email
	}
	local := email[:at]
	return local[:1] + strings.Repeat("*", len(local)-2) + local[len(local)-1:] + email[at:]
}

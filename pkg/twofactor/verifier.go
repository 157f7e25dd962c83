package twofactor

import (
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/chatmesh/chatauth/pkg/utils"
)

const (
	// PERIOD is the TOTP time-step in seconds
	PERIOD = 30
	// SKEW is the number of adjacent time windows accepted on either side
	// of the current one, to tolerate clock drift
	SKEW = 1
)

// VerificationRequest carries one verification attempt. It is built per call
// and discarded after.
type VerificationRequest struct {
	// Secret is the live TOTP seed; empty when the user has none
	Secret string
	// TempSecret is an enrollment candidate seed; only the enrollment flow
	// sets it, and it is never combined with Secret in one request
	TempSecret string
	// TempSecretExpiresAt bounds email-style temp codes; zero means no
	// expiry
	TempSecretExpiresAt time.Time
	// Code is the submitted passcode, unnormalized
	Code string
	// BackupHashes is the user's current backup-code hash set
	BackupHashes []string
	// Salt is the per-user salt for salted hashers
	Salt string
}

// VerificationResult reports the outcome of a verification attempt.
// UsedBackupHash is set when a backup code matched; the caller MUST consume
// that hash via SecretRepository.ConsumeBackupHash, otherwise the code stays
// valid for replay.
type VerificationResult struct {
	OK             bool
	UsedBackupHash string
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithPeriod sets the TOTP time-step in seconds
func WithPeriod(period uint) VerifierOption {
	return func(v *Verifier) {
		v.period = period
	}
}

// WithSkew sets the number of adjacent windows accepted
func WithSkew(skew uint) VerifierOption {
	return func(v *Verifier) {
		v.skew = skew
	}
}

// WithClock overrides the time source, for tests
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// Verifier validates submitted codes against a live TOTP secret and the
// backup-code set
type Verifier struct {
	period uint
	skew   uint
	hasher CodeHasher
	now    func() time.Time
}

// NewVerifier creates a verifier using the given backup-code hasher
func NewVerifier(hasher CodeHasher, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		period: PERIOD,
		skew:   SKEW,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the submitted code against the request's secret candidates
// and backup hashes. Both paths are evaluated before the decision is read,
// so response timing does not reveal which path was attempted.
func (v *Verifier) Verify(req VerificationRequest) VerificationResult {
	digits := utils.NormalizeDigits(req.Code)

	totpOK := false
	if req.Secret != "" && digits != "" {
		totpOK = v.validateTotp(req.Secret, digits)
	}

	tempOK := false
	if req.TempSecret != "" && digits != "" {
		// Expired temp codes are rejected before any comparison
		if req.TempSecretExpiresAt.IsZero() || v.now().UTC().Before(req.TempSecretExpiresAt) {
			tempOK = v.validateTotp(req.TempSecret, digits)
		}
	}

	usedHash := ""
	if len(req.BackupHashes) > 0 {
		submitted := v.hasher.Hash(utils.NormalizeBackupCode(req.Code), req.Salt)
		for _, h := range req.BackupHashes {
			if subtle.ConstantTimeCompare([]byte(h), []byte(submitted)) == 1 {
				usedHash = h
			}
		}
	}

	if totpOK || tempOK {
		return VerificationResult{OK: true}
	}
	if usedHash != "" {
		return VerificationResult{OK: true, UsedBackupHash: usedHash}
	}
	return VerificationResult{}
}

// GeneratePasscode computes the current TOTP value for a secret. Used by
// tests and by alternate-login token derivation.
func (v *Verifier) GeneratePasscode(secret string) (string, error) {
	return totp.GenerateCodeCustom(secret, v.now().UTC(), totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}

func (v *Verifier) validateTotp(secret, passcode string) bool {
	valid, err := totp.ValidateCustom(passcode, secret, v.now().UTC(), totp.ValidateOpts{
		Period:    v.period,
		Skew:      v.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		slog.Error("Failed to validate totp passcode", "error", err)
		return false
	}
	return valid
}

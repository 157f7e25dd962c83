package twofactor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no second-factor record exists for a user
var ErrNotFound = errors.New("second-factor record not found")

// Record represents a user's second-factor state
type Record struct {
	UserID uuid.UUID `json:"user_id"`

	// Enabled implies Secret is non-empty
	Enabled bool   `json:"enabled"`
	Secret  string `json:"secret,omitempty"`

	// TempSecret is the candidate seed during enrollment. It is never
	// accepted for login; only ConfirmEnrollment promotes it to Secret.
	TempSecret string `json:"temp_secret,omitempty"`
	// TempSecretExpiresAt bounds email-style temp codes; the zero value
	// means no expiry (TOTP enrollment seeds)
	TempSecretExpiresAt time.Time `json:"temp_secret_expires_at,omitempty"`

	// BackupCodeHashes holds 0 or exactly BackupCodeCount hashes; consumed
	// codes are removed, never marked
	BackupCodeHashes []string `json:"backup_code_hashes,omitempty"`

	// Salt is the per-user salt for salted hashers; empty for unsalted ones
	Salt string `json:"salt,omitempty"`

	FailedAttempts int `json:"failed_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SetTempSecretParams represents parameters for starting or restarting
// an enrollment
type SetTempSecretParams struct {
	UserID     uuid.UUID
	TempSecret string
	Salt       string
	ExpiresAt  time.Time
}

// ConfirmEnrollmentParams represents parameters for completing an enrollment
type ConfirmEnrollmentParams struct {
	UserID uuid.UUID

	// TempSecret is the pending secret the caller verified. It is promoted
	// to the live secret only if the stored temp secret still equals it.
	TempSecret string

	BackupCodeHashes []string
}

// SecretRepository defines the interface for second-factor state storage.
//
// ConfirmEnrollment, ReplaceBackupHashes and ConsumeBackupHash must be
// atomic: a cancelled or racing call may observe the old state or the new
// state, never a partial mix.
type SecretRepository interface {
	// Get returns the record for a user, or ErrNotFound
	Get(ctx context.Context, userID uuid.UUID) (Record, error)

	// SetTempSecret begins or restarts enrollment; Enabled and Secret are
	// left untouched
	SetTempSecret(ctx context.Context, params SetTempSecretParams) error

	// ConfirmEnrollment atomically promotes params.TempSecret to the live
	// secret, sets Enabled and the backup hashes, and clears the temp
	// secret. The write is a compare-and-set on the stored temp secret:
	// it returns false when a restarted enrollment superseded the one the
	// caller verified, so two racing confirmations cannot both succeed
	// against different temp secrets.
	ConfirmEnrollment(ctx context.Context, params ConfirmEnrollmentParams) (bool, error)

	// Disable clears Enabled, Secret, TempSecret and the backup hashes.
	// Returns true if a record was modified.
	Disable(ctx context.Context, userID uuid.UUID) (bool, error)

	// ReplaceBackupHashes atomically swaps the full backup-hash set
	ReplaceBackupHashes(ctx context.Context, userID uuid.UUID, hashes []string) error

	// ConsumeBackupHash removes exactly one matching hash. Returns false
	// when the hash is absent (already consumed or never issued).
	ConsumeBackupHash(ctx context.Context, userID uuid.UUID, hash string) (bool, error)

	// IncrementFailedAttempts bumps the failure counter and returns the
	// new count
	IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error)

	// ResetFailedAttempts clears the failure counter
	ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error
}

package twofactor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSecretRepository implements SecretRepository using PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE two_factor_secrets (
//	    user_id uuid PRIMARY KEY,
//	    enabled boolean NOT NULL DEFAULT false,
//	    secret text NOT NULL DEFAULT '',
//	    temp_secret text NOT NULL DEFAULT '',
//	    temp_secret_expires_at timestamptz,
//	    backup_code_hashes text[] NOT NULL DEFAULT '{}',
//	    salt text NOT NULL DEFAULT '',
//	    failed_attempts int NOT NULL DEFAULT 0,
//	    created_at timestamptz NOT NULL DEFAULT now(),
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
type PostgresSecretRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSecretRepository creates a new PostgreSQL-based repository
func NewPostgresSecretRepository(pool *pgxpool.Pool) *PostgresSecretRepository {
	return &PostgresSecretRepository{pool: pool}
}

// Get returns the record for a user, or ErrNotFound
func (r *PostgresSecretRepository) Get(ctx context.Context, userID uuid.UUID) (Record, error) {
	const q = `SELECT user_id, enabled, secret, temp_secret,
		COALESCE(temp_secret_expires_at, 'epoch'::timestamptz),
		backup_code_hashes, salt, failed_attempts, created_at, updated_at
		FROM two_factor_secrets WHERE user_id = $1`

	var record Record
	err := r.pool.QueryRow(ctx, q, userID).Scan(
		&record.UserID,
		&record.Enabled,
		&record.Secret,
		&record.TempSecret,
		&record.TempSecretExpiresAt,
		&record.BackupCodeHashes,
		&record.Salt,
		&record.FailedAttempts,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to get second-factor record: %w", err)
	}
	// The epoch sentinel stands in for NULL; callers expect the zero value
	if record.TempSecretExpiresAt.Unix() == 0 {
		record.TempSecretExpiresAt = time.Time{}
	}
	return record, nil
}

// SetTempSecret begins or restarts enrollment with a single upsert
func (r *PostgresSecretRepository) SetTempSecret(ctx context.Context, params SetTempSecretParams) error {
	const q = `INSERT INTO two_factor_secrets (user_id, temp_secret, temp_secret_expires_at, salt)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			temp_secret = EXCLUDED.temp_secret,
			temp_secret_expires_at = EXCLUDED.temp_secret_expires_at,
			salt = CASE WHEN EXCLUDED.salt <> '' THEN EXCLUDED.salt ELSE two_factor_secrets.salt END,
			updated_at = now()`

	var expiresAt *time.Time
	if !params.ExpiresAt.IsZero() {
		expiresAt = &params.ExpiresAt
	}
	_, err := r.pool.Exec(ctx, q, params.UserID, params.TempSecret, expiresAt, params.Salt)
	if err != nil {
		return fmt.Errorf("failed to set temp secret: %w", err)
	}
	return nil
}

// ConfirmEnrollment promotes the enrollment in one statement, so a cancelled
// call cannot leave the record half-updated. The temp_secret guard is the
// compare-and-set: a confirmation that verified a since-restarted enrollment
// matches no row and does not commit.
func (r *PostgresSecretRepository) ConfirmEnrollment(ctx context.Context, params ConfirmEnrollmentParams) (bool, error) {
	const q = `UPDATE two_factor_secrets SET
			enabled = true,
			secret = temp_secret,
			backup_code_hashes = $3,
			temp_secret = '',
			temp_secret_expires_at = NULL,
			failed_attempts = 0,
			updated_at = now()
		WHERE user_id = $1 AND temp_secret = $2`

	tag, err := r.pool.Exec(ctx, q, params.UserID, params.TempSecret, params.BackupCodeHashes)
	if err != nil {
		return false, fmt.Errorf("failed to confirm enrollment: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Zero rows is either a missing record or a superseded temp secret
	var exists bool
	err = r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM two_factor_secrets WHERE user_id = $1)`,
		params.UserID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to confirm enrollment: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// Disable clears the second-factor state for a user
func (r *PostgresSecretRepository) Disable(ctx context.Context, userID uuid.UUID) (bool, error) {
	const q = `UPDATE two_factor_secrets SET
			enabled = false,
			secret = '',
			temp_secret = '',
			temp_secret_expires_at = NULL,
			backup_code_hashes = '{}',
			failed_attempts = 0,
			updated_at = now()
		WHERE user_id = $1
		  AND (enabled OR secret <> '' OR temp_secret <> '' OR cardinality(backup_code_hashes) > 0)`

	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return false, fmt.Errorf("failed to disable second factor: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReplaceBackupHashes swaps the full backup-hash set in one statement
func (r *PostgresSecretRepository) ReplaceBackupHashes(ctx context.Context, userID uuid.UUID, hashes []string) error {
	const q = `UPDATE two_factor_secrets SET backup_code_hashes = $2, updated_at = now()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, q, userID, hashes)
	if err != nil {
		return fmt.Errorf("failed to replace backup hashes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConsumeBackupHash removes one matching hash. The WHERE guard makes the
// remove-if-present atomic: two racing submissions of the same code see at
// most one row affected. The slice-around-position form removes a single
// occurrence, not every occurrence, matching ConsumeBackupHash's contract.
func (r *PostgresSecretRepository) ConsumeBackupHash(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	const q = `UPDATE two_factor_secrets SET
			backup_code_hashes =
				backup_code_hashes[1:array_position(backup_code_hashes, $2) - 1]
				|| backup_code_hashes[array_position(backup_code_hashes, $2) + 1:],
			updated_at = now()
		WHERE user_id = $1 AND $2 = ANY(backup_code_hashes)`

	tag, err := r.pool.Exec(ctx, q, userID, hash)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup hash: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementFailedAttempts bumps the failure counter
func (r *PostgresSecretRepository) IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	const q = `UPDATE two_factor_secrets SET failed_attempts = failed_attempts + 1, updated_at = now()
		WHERE user_id = $1 RETURNING failed_attempts`

	var count int
	err := r.pool.QueryRow(ctx, q, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment failed attempts: %w", err)
	}
	return count, nil
}

// ResetFailedAttempts clears the failure counter
func (r *PostgresSecretRepository) ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error {
	const q = `UPDATE two_factor_secrets SET failed_attempts = 0, updated_at = now()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return fmt.Errorf("failed to reset failed attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

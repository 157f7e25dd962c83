package twofactor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemSecretRepository implements SecretRepository using in-memory storage
type InMemSecretRepository struct {
	mutex   sync.RWMutex
	records map[uuid.UUID]Record
}

// NewInMemSecretRepository creates a new in-memory second-factor repository
func NewInMemSecretRepository() *InMemSecretRepository {
	return &InMemSecretRepository{
		records: make(map[uuid.UUID]Record),
	}
}

// Get returns the record for a user, or ErrNotFound
func (r *InMemSecretRepository) Get(ctx context.Context, userID uuid.UUID) (Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.records[userID]
	if !exists {
		return Record{}, ErrNotFound
	}
	// Copy the hash slice so callers cannot mutate stored state
	record.BackupCodeHashes = append([]string(nil), record.BackupCodeHashes...)
	return record, nil
}

// SetTempSecret begins or restarts enrollment for a user
func (r *InMemSecretRepository) SetTempSecret(ctx context.Context, params SetTempSecretParams) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	now := time.Now().UTC()
	record, exists := r.records[params.UserID]
	if !exists {
		record = Record{
			UserID:    params.UserID,
			CreatedAt: now,
		}
	}

	record.TempSecret = params.TempSecret
	record.TempSecretExpiresAt = params.ExpiresAt
	if params.Salt != "" {
		record.Salt = params.Salt
	}
	record.UpdatedAt = now
	r.records[params.UserID] = record
	return nil
}

// ConfirmEnrollment atomically promotes the enrollment. The temp-secret
// check and the write share the lock, so a confirmation that verified a
// since-restarted enrollment cannot commit.
func (r *InMemSecretRepository) ConfirmEnrollment(ctx context.Context, params ConfirmEnrollmentParams) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[params.UserID]
	if !exists {
		return false, ErrNotFound
	}
	if record.TempSecret != params.TempSecret {
		return false, nil
	}

	record.Enabled = true
	record.Secret = params.TempSecret
	record.BackupCodeHashes = append([]string(nil), params.BackupCodeHashes...)
	record.TempSecret = ""
	record.TempSecretExpiresAt = time.Time{}
	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[params.UserID] = record
	return true, nil
}

// Disable clears the second-factor state for a user
func (r *InMemSecretRepository) Disable(ctx context.Context, userID uuid.UUID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return false, nil
	}

	modified := record.Enabled || record.Secret != "" || record.TempSecret != "" || len(record.BackupCodeHashes) > 0
	record.Enabled = false
	record.Secret = ""
	record.TempSecret = ""
	record.TempSecretExpiresAt = time.Time{}
	record.BackupCodeHashes = nil
	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record
	return modified, nil
}

// ReplaceBackupHashes atomically swaps the backup-hash set
func (r *InMemSecretRepository) ReplaceBackupHashes(ctx context.Context, userID uuid.UUID, hashes []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return ErrNotFound
	}

	record.BackupCodeHashes = append([]string(nil), hashes...)
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record
	return nil
}

// ConsumeBackupHash removes one matching hash under the write lock, so two
// racing submissions of the same code cannot both succeed
func (r *InMemSecretRepository) ConsumeBackupHash(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return false, nil
	}

	for i, h := range record.BackupCodeHashes {
		if h == hash {
			record.BackupCodeHashes = append(record.BackupCodeHashes[:i], record.BackupCodeHashes[i+1:]...)
			record.UpdatedAt = time.Now().UTC()
			r.records[userID] = record
			return true, nil
		}
	}
	return false, nil
}

// IncrementFailedAttempts bumps the failure counter
func (r *InMemSecretRepository) IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return 0, ErrNotFound
	}

	record.FailedAttempts++
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record
	return record.FailedAttempts, nil
}

// ResetFailedAttempts clears the failure counter
func (r *InMemSecretRepository) ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return ErrNotFound
	}

	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record
	return nil
}

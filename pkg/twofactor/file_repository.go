package twofactor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileSecretRepository implements SecretRepository using file-based storage
type FileSecretRepository struct {
	dataDir string
	records map[uuid.UUID]Record
	mutex   sync.RWMutex
}

// NewFileSecretRepository creates a new file-based second-factor repository
func NewFileSecretRepository(dataDir string) (*FileSecretRepository, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileSecretRepository{
		dataDir: dataDir,
		records: make(map[uuid.UUID]Record),
	}

	// Load existing data
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	return repo, nil
}

// Get returns the record for a user, or ErrNotFound
func (r *FileSecretRepository) Get(ctx context.Context, userID uuid.UUID) (Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.records[userID]
	if !exists {
		return Record{}, ErrNotFound
	}
	record.BackupCodeHashes = append([]string(nil), record.BackupCodeHashes...)
	return record, nil
}

// SetTempSecret begins or restarts enrollment for a user
func (r *FileSecretRepository) SetTempSecret(ctx context.Context, params SetTempSecretParams) error {
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

	prev := r.records[params.UserID]
	record.TempSecret = params.TempSecret
	record.TempSecretExpiresAt = params.ExpiresAt
	if params.Salt != "" {
		record.Salt = params.Salt
	}
	record.UpdatedAt = now
	r.records[params.UserID] = record

	if err := r.save(); err != nil {
		// Rollback
		if exists {
			r.records[params.UserID] = prev
		} else {
			delete(r.records, params.UserID)
		}
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// ConfirmEnrollment atomically promotes the enrollment. The temp-secret
// check and the write share the lock, so a confirmation that verified a
// since-restarted enrollment cannot commit.
func (r *FileSecretRepository) ConfirmEnrollment(ctx context.Context, params ConfirmEnrollmentParams) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[params.UserID]
	if !exists {
		return false, ErrNotFound
	}
	if record.TempSecret != params.TempSecret {
		return false, nil
	}

	prev := record
	record.Enabled = true
	record.Secret = params.TempSecret
	record.BackupCodeHashes = append([]string(nil), params.BackupCodeHashes...)
	record.TempSecret = ""
	record.TempSecretExpiresAt = time.Time{}
	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[params.UserID] = record

	if err := r.save(); err != nil {
		r.records[params.UserID] = prev
		return false, fmt.Errorf("failed to save: %w", err)
	}
	return true, nil
}

// Disable clears the second-factor state for a user
func (r *FileSecretRepository) Disable(ctx context.Context, userID uuid.UUID) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return false, nil
	}

	prev := record
	modified := record.Enabled || record.Secret != "" || record.TempSecret != "" || len(record.BackupCodeHashes) > 0
	record.Enabled = false
	record.Secret = ""
	record.TempSecret = ""
	record.TempSecretExpiresAt = time.Time{}
	record.BackupCodeHashes = nil
	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record

	if err := r.save(); err != nil {
		r.records[userID] = prev
		return false, fmt.Errorf("failed to save: %w", err)
	}
	return modified, nil
}

// ReplaceBackupHashes atomically swaps the backup-hash set
func (r *FileSecretRepository) ReplaceBackupHashes(ctx context.Context, userID uuid.UUID, hashes []string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return ErrNotFound
	}

	prev := record
	record.BackupCodeHashes = append([]string(nil), hashes...)
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record

	if err := r.save(); err != nil {
		r.records[userID] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// ConsumeBackupHash removes exactly one matching hash
func (r *FileSecretRepository) ConsumeBackupHash(ctx context.Context, userID uuid.UUID, hash string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return false, nil
	}

	for i, h := range record.BackupCodeHashes {
		if h == hash {
			prev := record
			prevHashes := append([]string(nil), record.BackupCodeHashes...)
			record.BackupCodeHashes = append(record.BackupCodeHashes[:i], record.BackupCodeHashes[i+1:]...)
			record.UpdatedAt = time.Now().UTC()
			r.records[userID] = record

			if err := r.save(); err != nil {
				prev.BackupCodeHashes = prevHashes
				r.records[userID] = prev
				return false, fmt.Errorf("failed to save: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// IncrementFailedAttempts bumps the failure counter
func (r *FileSecretRepository) IncrementFailedAttempts(ctx context.Context, userID uuid.UUID) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return 0, ErrNotFound
	}

	record.FailedAttempts++
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record

	if err := r.save(); err != nil {
		return 0, fmt.Errorf("failed to save: %w", err)
	}
	return record.FailedAttempts, nil
}

// ResetFailedAttempts clears the failure counter
func (r *FileSecretRepository) ResetFailedAttempts(ctx context.Context, userID uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		return ErrNotFound
	}

	record.FailedAttempts = 0
	record.UpdatedAt = time.Now().UTC()
	r.records[userID] = record

	if err := r.save(); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads second-factor data from file
func (r *FileSecretRepository) load() error {
	filePath := filepath.Join(r.dataDir, "twofactor.json")

	// If file doesn't exist, start with empty map
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	// If file is empty, start with empty map
	if len(data) == 0 {
		return nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}

	r.records = make(map[uuid.UUID]Record)
	for _, record := range records {
		r.records[record.UserID] = record
	}

	return nil
}

// save writes second-factor data to file atomically
func (r *FileSecretRepository) save() error {
	records := make([]Record, 0, len(r.records))
	for _, record := range r.records {
		records = append(records, record)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Write to temp file first
	tempFile := filepath.Join(r.dataDir, "twofactor.json.tmp")
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// Atomic rename
	finalFile := filepath.Join(r.dataDir, "twofactor.json")
	if err := os.Rename(tempFile, finalFile); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	return nil
}

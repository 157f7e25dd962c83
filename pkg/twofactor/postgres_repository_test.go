package twofactor

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresRepo connects to the database named by TEST_DATABASE_URL.
// The two_factor_secrets table must exist; see the schema comment in
// postgres_repository.go.
func setupPostgresRepo(t *testing.T) *PostgresSecretRepository {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewPostgresSecretRepository(pool)
}

func TestPostgresRepositoryLifecycle(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.SetTempSecret(ctx, SetTempSecretParams{
		UserID:     userID,
		TempSecret: "TEMPSECRET",
		Salt:       "salt-1",
	}))

	record, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "TEMPSECRET", record.TempSecret)
	assert.True(t, record.TempSecretExpiresAt.IsZero())

	confirmed, err := repo.ConfirmEnrollment(ctx, ConfirmEnrollmentParams{
		UserID:           userID,
		TempSecret:       "TEMPSECRET",
		BackupCodeHashes: []string{"h1", "h2"},
	})
	require.NoError(t, err)
	assert.True(t, confirmed)

	record, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.True(t, record.Enabled)
	assert.Equal(t, "TEMPSECRET", record.Secret)
	assert.Empty(t, record.TempSecret)

	consumed, err := repo.ConsumeBackupHash(ctx, userID, "h1")
	require.NoError(t, err)
	assert.True(t, consumed)
	consumed, err = repo.ConsumeBackupHash(ctx, userID, "h1")
	require.NoError(t, err)
	assert.False(t, consumed)

	modified, err := repo.Disable(ctx, userID)
	require.NoError(t, err)
	assert.True(t, modified)
	modified, err = repo.Disable(ctx, userID)
	require.NoError(t, err)
	assert.False(t, modified)
}

func TestPostgresRepositoryConfirmSupersededTempSecret(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetTempSecret(ctx, SetTempSecretParams{UserID: userID, TempSecret: "A"}))
	require.NoError(t, repo.SetTempSecret(ctx, SetTempSecretParams{UserID: userID, TempSecret: "B"}))

	confirmed, err := repo.ConfirmEnrollment(ctx, ConfirmEnrollmentParams{
		UserID:           userID,
		TempSecret:       "A",
		BackupCodeHashes: []string{"h1"},
	})
	require.NoError(t, err)
	assert.False(t, confirmed)

	record, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.False(t, record.Enabled)
	assert.Equal(t, "B", record.TempSecret)

	_, err = repo.ConfirmEnrollment(ctx, ConfirmEnrollmentParams{
		UserID:     uuid.New(),
		TempSecret: "B",
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresRepositoryConsumeBackupHashRemovesOneOccurrence(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetTempSecret(ctx, SetTempSecretParams{UserID: userID, TempSecret: "S"}))
	require.NoError(t, repo.ReplaceBackupHashes(ctx, userID, []string{"h1", "dup", "dup"}))

	consumed, err := repo.ConsumeBackupHash(ctx, userID, "dup")
	require.NoError(t, err)
	assert.True(t, consumed)

	record, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"h1", "dup"}, record.BackupCodeHashes)
}

func TestPostgresRepositoryFailedAttempts(t *testing.T) {
	repo := setupPostgresRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetTempSecret(ctx, SetTempSecretParams{UserID: userID, TempSecret: "S"}))

	count, err := repo.IncrementFailedAttempts(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.ResetFailedAttempts(ctx, userID))
	record, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, record.FailedAttempts)
}

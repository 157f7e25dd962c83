package twofactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"

	idmerr "github.com/chatmesh/chatauth/pkg/errors"
	"github.com/chatmesh/chatauth/pkg/notification"
	"github.com/chatmesh/chatauth/pkg/sessions"
	"github.com/chatmesh/chatauth/pkg/userevents"
	"github.com/chatmesh/chatauth/pkg/utils"
)

const TOTP_ISSUER = "chatmesh"

// ErrEnrollmentNotStarted is returned when confirmation is attempted with no
// pending temp secret
var ErrEnrollmentNotStarted = errors.New("second-factor enrollment not in progress")

// Enrollment is returned by BeginEnrollment. The temp secret is only
// promoted to a live secret by ConfirmEnrollment.
type Enrollment struct {
	TempSecret string `json:"temp_secret"`
	OtpauthURL string `json:"otpauth_url"`
}

// TwoFactorService is the produced interface of this package.
//
// Wrong or expired codes are verification outcomes: ConfirmEnrollment and
// RegenerateBackupCodes return (nil, nil), Disable and VerifyCode return
// (false, nil). Errors are reserved for precondition and infrastructure
// failures.
type TwoFactorService interface {
	BeginEnrollment(ctx context.Context, userID uuid.UUID) (Enrollment, error)
	ConfirmEnrollment(ctx context.Context, userID uuid.UUID, code, currentTokenHash string) (*BackupCodeBatch, error)
	Disable(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, code string) (*BackupCodeBatch, error)
	VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	IsEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
}

// EmailResolver maps a user ID to the address change notices are mailed to.
// Returning an empty address skips the notice.
type EmailResolver func(ctx context.Context, userID uuid.UUID) (string, error)

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithSessions wires the login-token store used for post-enrollment pruning
func WithSessions(repo sessions.Repository) ServiceOption {
	return func(s *Service) {
		s.sessions = repo
	}
}

// WithUserEvents wires the user-change notification bus
func WithUserEvents(events userevents.Notifier) ServiceOption {
	return func(s *Service) {
		s.events = events
	}
}

// WithNotifications wires the notice manager and the address lookup for it
func WithNotifications(manager *notification.Manager, resolver EmailResolver) ServiceOption {
	return func(s *Service) {
		s.notifications = manager
		s.emailResolver = resolver
	}
}

// WithIssuer sets the issuer embedded in otpauth URLs
func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithHasher sets the backup-code hashing scheme
func WithHasher(hasher CodeHasher) ServiceOption {
	return func(s *Service) {
		s.hasher = hasher
	}
}

// WithVerifierOptions forwards options to the internal verifier
func WithVerifierOptions(opts ...VerifierOption) ServiceOption {
	return func(s *Service) {
		s.verifierOpts = append(s.verifierOpts, opts...)
	}
}

// Service implements TwoFactorService on top of a SecretRepository
type Service struct {
	repo          SecretRepository
	sessions      sessions.Repository
	events        userevents.Notifier
	notifications *notification.Manager
	emailResolver EmailResolver
	issuer        string
	hasher        CodeHasher
	verifierOpts  []VerifierOption
	verifier      *Verifier
	generator     *BackupCodeGenerator
}

// NewService creates a second-factor service
func NewService(repo SecretRepository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:   repo,
		issuer: TOTP_ISSUER,
		hasher: &Sha256Hasher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.verifier = NewVerifier(s.hasher, s.verifierOpts...)
	s.generator = NewBackupCodeGenerator(s.hasher)
	return s
}

// Verifier exposes the configured verifier, for the gates
func (s *Service) Verifier() *Verifier {
	return s.verifier
}

// BeginEnrollment generates a new TOTP seed and stores it as the user's temp
// secret. Calling it again before confirmation discards the previous temp
// secret. An existing enabled secret stays live until the new one is
// confirmed.
func (s *Service) BeginEnrollment(ctx context.Context, userID uuid.UUID) (Enrollment, error) {
	if userID == uuid.Nil {
		return Enrollment{}, idmerr.Unauthorized("not authenticated")
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: userID.String(),
		Period:      PERIOD,
	})
	if err != nil {
		slog.Error("Failed to generate totp secret", "userID", userID, "issuer", s.issuer, "error", err)
		return Enrollment{}, fmt.Errorf("failed to generate totp secret: %w", err)
	}

	// Reuse the user's salt when one exists so previously issued hashes
	// stay verifiable; mint one otherwise
	salt := ""
	record, err := s.repo.Get(ctx, userID)
	switch {
	case err == nil:
		salt = record.Salt
	case errors.Is(err, ErrNotFound):
	default:
		return Enrollment{}, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	if salt == "" {
		salt = utils.GenerateRandomString(16)
	}

	err = s.repo.SetTempSecret(ctx, SetTempSecretParams{
		UserID:     userID,
		TempSecret: key.Secret(),
		Salt:       salt,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to store temp secret: %w", err)
	}

	slog.Info("Started second-factor enrollment", "userID", userID)
	return Enrollment{
		TempSecret: key.Secret(),
		OtpauthURL: key.URL(),
	}, nil
}

// ConfirmEnrollment verifies the submitted code against the pending temp
// secret only, then atomically enables the second factor with a fresh backup
// batch. A wrong code returns (nil, nil), as does a confirmation whose temp
// secret was superseded by a restarted enrollment before the write committed.
//
// When currentTokenHash identifies the calling session, every other
// resume-type login token is pruned: sessions authenticated before the
// second factor existed should not stay trusted without it.
func (s *Service) ConfirmEnrollment(ctx context.Context, userID uuid.UUID, code, currentTokenHash string) (*BackupCodeBatch, error) {
	if userID == uuid.Nil {
		return nil, idmerr.Unauthorized("not authenticated")
	}

	record, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrEnrollmentNotStarted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	if record.TempSecret == "" {
		return nil, ErrEnrollmentNotStarted
	}

	// The pending enrollment is proven against the new secret only; the
	// old secret and backup codes are deliberately absent here
	result := s.verifier.Verify(VerificationRequest{
		TempSecret:          record.TempSecret,
		TempSecretExpiresAt: record.TempSecretExpiresAt,
		Code:                code,
	})
	if !result.OK {
		slog.Warn("Enrollment confirmation failed verification", "userID", userID)
		return nil, nil
	}

	batch, err := s.generator.Generate(record.Salt)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.repo.ConfirmEnrollment(ctx, ConfirmEnrollmentParams{
		UserID:           userID,
		TempSecret:       record.TempSecret,
		BackupCodeHashes: batch.Hashes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm enrollment: %w", err)
	}
	if !confirmed {
		// A restarted enrollment replaced the temp secret after this call
		// verified it; the stale confirmation must not clobber the secret
		// the user most recently proved
		slog.Warn("Enrollment confirmation superseded by a newer temp secret", "userID", userID)
		return nil, nil
	}

	pruned := 0
	if s.sessions != nil && currentTokenHash != "" {
		pruneResult, pruneErr := s.sessions.PruneLoginTokensExcept(ctx, userID, currentTokenHash)
		if pruneErr != nil {
			slog.Error("Failed to prune login tokens after enrollment", "userID", userID, "error", pruneErr)
		} else {
			pruned = pruneResult.ModifiedCount
		}
	}

	s.notifyEnabled(ctx, userID, pruned)
	s.sendNotice(ctx, userID, notification.TotpEnabledNotice)

	slog.Info("Second-factor enrollment confirmed", "userID", userID, "prunedTokens", pruned)
	return &batch, nil
}

// Disable verifies the submitted code against the live secret and backup
// codes and, on success, clears the user's second-factor state. Not-enabled,
// wrong code, and nothing-modified all return (false, nil).
func (s *Service) Disable(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if userID == uuid.Nil {
		return false, idmerr.Unauthorized("not authenticated")
	}

	record, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	if !record.Enabled {
		return false, nil
	}

	ok, err := s.verifyAgainstRecord(ctx, userID, record, code)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	modified, err := s.repo.Disable(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to disable second factor: %w", err)
	}
	if !modified {
		return false, nil
	}

	if s.events != nil {
		s.events.NotifyUserChanged(ctx, userID, userevents.Diff{
			"services.totp.enabled": false,
		})
	}
	s.sendNotice(ctx, userID, notification.TotpDisabledNotice)

	slog.Info("Second factor disabled", "userID", userID)
	return true, nil
}

// RegenerateBackupCodes verifies the submitted code and, on success,
// atomically replaces the backup-hash set with a fresh batch. Every
// previously issued code stops working. A failed verification returns
// (nil, nil).
func (s *Service) RegenerateBackupCodes(ctx context.Context, userID uuid.UUID, code string) (*BackupCodeBatch, error) {
	if userID == uuid.Nil {
		return nil, idmerr.Unauthorized("not authenticated")
	}

	record, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	if !record.Enabled {
		return nil, nil
	}

	ok, err := s.verifyAgainstRecord(ctx, userID, record, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	batch, err := s.generator.Generate(record.Salt)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ReplaceBackupHashes(ctx, userID, batch.Hashes); err != nil {
		return nil, fmt.Errorf("failed to replace backup hashes: %w", err)
	}

	s.sendNotice(ctx, userID, notification.BackupCodesRegeneratedNotice)

	slog.Info("Backup codes regenerated", "userID", userID)
	return &batch, nil
}

// VerifyCode is the explicit verification used by the login and action
// gates. A user without an enabled second factor passes regardless of the
// submitted code; an enabled user needs a valid TOTP passcode or an unused
// backup code. Matched backup codes are consumed. Failed attempts bump the
// failure counter; success resets it.
func (s *Service) VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	if userID == uuid.Nil {
		return false, idmerr.Unauthorized("not authenticated")
	}

	record, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	if !record.Enabled {
		return true, nil
	}

	if code == "" {
		return false, nil
	}

	return s.verifyAgainstRecord(ctx, userID, record, code)
}

// IsEnabled reports whether the user has an enabled second factor
func (s *Service) IsEnabled(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, idmerr.Unauthorized("not authenticated")
	}

	record, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load second-factor record: %w", err)
	}
	return record.Enabled, nil
}

// verifyAgainstRecord runs the full secret+backup verification for an
// enabled record, consuming a matched backup hash and maintaining the
// failed-attempt counter
func (s *Service) verifyAgainstRecord(ctx context.Context, userID uuid.UUID, record Record, code string) (bool, error) {
	result := s.verifier.Verify(VerificationRequest{
		Secret:       record.Secret,
		Code:         code,
		BackupHashes: record.BackupCodeHashes,
		Salt:         record.Salt,
	})

	if result.OK && result.UsedBackupHash != "" {
		consumed, err := s.repo.ConsumeBackupHash(ctx, userID, result.UsedBackupHash)
		if err != nil {
			return false, fmt.Errorf("failed to consume backup code: %w", err)
		}
		// A concurrent request won the race for this one-time code
		if !consumed {
			result.OK = false
		}
	}

	if !result.OK {
		count, err := s.repo.IncrementFailedAttempts(ctx, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			slog.Error("Failed to record failed attempt", "userID", userID, "error", err)
		} else {
			slog.Warn("Second-factor verification failed", "userID", userID, "failedAttempts", count)
		}
		return false, nil
	}

	if err := s.repo.ResetFailedAttempts(ctx, userID); err != nil && !errors.Is(err, ErrNotFound) {
		slog.Error("Failed to reset failed attempts", "userID", userID, "error", err)
	}
	return true, nil
}

// notifyEnabled emits the user-change notification after enrollment. When
// sessions were pruned the diff is recomputed asynchronously from current
// state, so the broadcast never races the deletion with a stale token list.
func (s *Service) notifyEnabled(ctx context.Context, userID uuid.UUID, pruned int) {
	if s.events == nil {
		return
	}

	if pruned == 0 {
		s.events.NotifyUserChanged(ctx, userID, userevents.Diff{
			"services.totp.enabled": true,
		})
		return
	}

	s.events.NotifyUserChangedAsync(ctx, userID, func(ctx context.Context) (userevents.Diff, error) {
		diff := userevents.Diff{
			"services.totp.enabled": true,
		}
		if s.sessions != nil {
			tokens, err := s.sessions.FindUserLoginTokens(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to read login tokens: %w", err)
			}
			hashes := make([]string, 0, len(tokens))
			for _, t := range tokens {
				hashes = append(hashes, t.Hash)
			}
			diff["services.resume.loginTokens"] = hashes
		}
		return diff, nil
	})
}

// sendNotice mails a state-change notice when a manager and resolver are
// configured. Delivery failures are logged, never surfaced: the state change
// already happened.
func (s *Service) sendNotice(ctx context.Context, userID uuid.UUID, noticeType notification.NoticeType) {
	if s.notifications == nil || s.emailResolver == nil {
		return
	}

	email, err := s.emailResolver(ctx, userID)
	if err != nil {
		slog.Error("Failed to resolve user email for notice", "userID", userID, "type", noticeType, "error", err)
		return
	}

	if err := s.notifications.Send(noticeType, notification.NotificationData{To: email}); err != nil {
		slog.Error("Failed to send notice", "userID", userID, "type", noticeType, "error", err)
	}
}

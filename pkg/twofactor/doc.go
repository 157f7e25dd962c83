// Package twofactor provides TOTP-based second-factor authentication for
// chatauth.
//
// # Overview
//
// The twofactor package provides:
//   - TOTP (Time-based One-Time Password) secrets with authenticator-app
//     enrollment via otpauth URLs
//   - Single-use backup codes for account recovery
//   - A two-phase enrollment flow: a pending temp secret is only promoted
//     to the live secret after the user proves possession of it
//   - Pluggable secret persistence (postgres, file, memory)
//   - Pluggable backup-code hashing (sha256, pbkdf2)
//
// # Verification Semantics
//
// Wrong, expired, and already-consumed codes are verification outcomes, not
// errors: state-changing methods return a nil/false result with a nil
// error. Errors are reserved for precondition failures (missing
// authentication, enrollment never started) and infrastructure failures.
//
// # Basic Usage
//
//	import "github.com/chatmesh/chatauth/pkg/twofactor"
//
//	repo := twofactor.NewInMemSecretRepository()
//	service := twofactor.NewService(
//		repo,
//		twofactor.WithSessions(sessionRepo),
//		twofactor.WithUserEvents(dispatcher),
//	)
//
//	// Start enrollment: user scans the otpauth URL
//	enrollment, err := service.BeginEnrollment(ctx, userID)
//
//	// User proves possession of the new secret; backup codes are issued
//	// exactly once, here
//	batch, err := service.ConfirmEnrollment(ctx, userID, code, tokenHash)
//
//	// Later: explicit verification for protected actions
//	ok, err := service.VerifyCode(ctx, userID, code)
//
// # Backup Codes
//
// Each confirmed enrollment issues 12 single-use codes. Plaintext codes
// exist only in the BackupCodeBatch returned to the caller; the repository
// stores hashes. A matched code is consumed atomically, so concurrent
// requests presenting the same code cannot both pass.
//
// # Related Packages
//
//   - pkg/loginflow - login pipeline that collects the second factor
//   - pkg/guard - per-action second-factor enforcement
//   - pkg/sessions - login tokens pruned after enrollment
package twofactor

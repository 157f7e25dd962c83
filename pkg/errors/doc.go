// Package errors provides structured errors with stable codes for the
// chatauth subsystem.
//
// The package draws a hard line between three kinds of failure:
//
//   - Precondition errors (not authenticated, user not found, enrollment not
//     in progress) are returned as *Error values with a code and bubble up to
//     the caller.
//   - Verification outcomes (wrong passcode, expired passcode, already
//     consumed backup code) are NOT errors. pkg/twofactor reports them as
//     boolean or nil results so hot-path callers can branch without error
//     handling.
//   - Infrastructure errors (store write failure, hashing failure) are
//     wrapped with %w and propagate unchanged; no retries happen here.
//
// Handlers map codes to HTTP statuses with MapErrorCodeToHTTPStatus.
package errors

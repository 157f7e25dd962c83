package guard

import (
	"context"

	"github.com/google/uuid"

	idmerr "github.com/chatmesh/chatauth/pkg/errors"
)

// Payload is an explicit second-factor submission accompanying a guarded
// call. Legacy transports that smuggle it as a trailing positional argument
// go through ExtractTrailingPayload first.
type Payload struct {
	Code   string `json:"code"`
	Method string `json:"method"`
}

// CallState is the verification state of one logical call context (a
// connection or a single method invocation). It must not be shared across
// unrelated invocations: the checked flag is not a session-wide cache.
type CallState struct {
	UserID uuid.UUID

	// TwoFactorChecked is set once a second factor has been confirmed for
	// this context, so a chain of guarded calls prompts at most once
	TwoFactorChecked bool
}

// NewCallState creates the state for one logical call context
func NewCallState(userID uuid.UUID) *CallState {
	return &CallState{UserID: userID}
}

// Verifier is the subset of the second-factor service the guard needs
type Verifier interface {
	VerifyCode(ctx context.Context, userID uuid.UUID, code string) (bool, error)
	IsEnabled(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Options configures one guarded operation
type Options struct {
	// RequireSecondFactor rejects callers who have no second factor
	// enrolled instead of letting them through unchecked
	RequireSecondFactor bool
}

// Action is a guarded operation
type Action func(ctx context.Context, args []interface{}) (interface{}, error)

// GuardedAction is an Action wrapped with second-factor enforcement. The
// call state and payload are explicit parameters rather than being fished
// out of the argument list.
type GuardedAction func(ctx context.Context, state *CallState, payload *Payload, args []interface{}) (interface{}, error)

// Interceptor wraps operations with second-factor enforcement
type Interceptor struct {
	verifier Verifier
}

// NewInterceptor creates an interceptor backed by the given verifier
func NewInterceptor(verifier Verifier) *Interceptor {
	return &Interceptor{verifier: verifier}
}

// Wrap returns fn guarded by second-factor enforcement:
//
//  1. Callers without an authenticated user are rejected.
//  2. An explicit payload is always verified, even when the context was
//     already checked; success marks the context checked.
//  3. A still-unchecked context gets a contextual no-code verification,
//     which passes when the user has no second factor enabled.
//  4. fn runs only after 1-3 succeed, with args untouched.
func (i *Interceptor) Wrap(fn Action, options Options) GuardedAction {
	return func(ctx context.Context, state *CallState, payload *Payload, args []interface{}) (interface{}, error) {
		if state == nil || state.UserID == uuid.Nil {
			return nil, idmerr.Unauthorized("not authenticated")
		}

		if options.RequireSecondFactor {
			enabled, err := i.verifier.IsEnabled(ctx, state.UserID)
			if err != nil {
				return nil, err
			}
			if !enabled {
				return nil, idmerr.New(idmerr.ErrCode2FARequired, "second factor must be enrolled for this operation")
			}
		}

		if payload != nil {
			// Explicit code beats any cached checked state
			ok, err := i.verifier.VerifyCode(ctx, state.UserID, payload.Code)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, idmerr.New(idmerr.ErrCode2FAInvalid, "invalid two-factor code")
			}
			state.TwoFactorChecked = true
		}

		if !state.TwoFactorChecked {
			// The trusted-window check: no explicit code, passes only when
			// the user needs no second factor
			ok, err := i.verifier.VerifyCode(ctx, state.UserID, "")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, idmerr.New(idmerr.ErrCode2FARequired, "two-factor code required")
			}
			state.TwoFactorChecked = true
		}

		return fn(ctx, args)
	}
}

// ExtractTrailingPayload bridges callers that append the second-factor
// payload as the last positional argument. When the trailing argument looks
// like a payload it is removed from the returned slice; anything else is
// left in place.
func ExtractTrailingPayload(args []interface{}) (*Payload, []interface{}) {
	if len(args) == 0 {
		return nil, args
	}

	last := args[len(args)-1]
	switch v := last.(type) {
	case *Payload:
		if v != nil {
			return v, args[:len(args)-1]
		}
	case Payload:
		return &v, args[:len(args)-1]
	case map[string]interface{}:
		code, hasCode := v["twoFactorCode"].(string)
		method, hasMethod := v["twoFactorMethod"].(string)
		if hasCode && hasMethod {
			return &Payload{Code: code, Method: method}, args[:len(args)-1]
		}
	}

	return nil, args
}

package loginflow

import (
	"context"
	"log/slog"

	"github.com/chatmesh/chatauth/pkg/userevents"
)

// BypassStep marks attempt types that never require a second factor.
// Resume, proxy, and CAS attempts carry an already-established trust, and
// password-type attempts for password reset or email verification are not
// logging in as a privileged session.
type BypassStep struct{}

func NewBypassStep() *BypassStep {
	return &BypassStep{}
}

func (s *BypassStep) Name() string {
	return "two_factor_bypass"
}

func (s *BypassStep) Order() int {
	return OrderBypassCheck
}

func (s *BypassStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return false
}

func (s *BypassStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	request := flowContext.Request

	switch request.Type {
	case AttemptResume, AttemptProxy, AttemptCAS:
		flowContext.TwoFactorBypassed = true
	case AttemptPassword:
		if request.Purpose == PurposePasswordReset || request.Purpose == PurposeEmailVerification {
			flowContext.TwoFactorBypassed = true
		}
	}

	return &StepResult{Continue: true}, nil
}

// AlternateLoginStep hands control to the underlying login-handler chain
// when the second factor itself authenticated the user, instead of
// re-running normal credential checks
type AlternateLoginStep struct{}

func NewAlternateLoginStep() *AlternateLoginStep {
	return &AlternateLoginStep{}
}

func (s *AlternateLoginStep) Name() string {
	return "alternate_login"
}

func (s *AlternateLoginStep) Order() int {
	return OrderAlternateLogin
}

func (s *AlternateLoginStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	if flowContext.TwoFactorBypassed {
		return true
	}
	payload := flowContext.Request.TwoFactor
	return payload == nil || payload.Login == nil
}

func (s *AlternateLoginStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	handler := flowContext.Services.AlternateLogin
	if handler == nil {
		return &StepResult{
			Error: &Error{
				Type:    ErrorTypeAlternateLogin,
				Message: "alternate login is not supported",
			},
		}, nil
	}

	result, err := handler(ctx, *flowContext.Request.TwoFactor.Login)
	if err != nil {
		return nil, err
	}

	*flowContext.Result = *result
	return &StepResult{EarlyReturn: true}, nil
}

// TwoFactorStep forwards the optional code to the verification service. An
// enabled user with a missing or wrong code fails with a generic invalid-code
// error; neither account existence nor enrollment state is revealed.
type TwoFactorStep struct{}

func NewTwoFactorStep() *TwoFactorStep {
	return &TwoFactorStep{}
}

func (s *TwoFactorStep) Name() string {
	return "two_factor_verification"
}

func (s *TwoFactorStep) Order() int {
	return OrderTwoFactorCheck
}

func (s *TwoFactorStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.TwoFactorBypassed
}

func (s *TwoFactorStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	request := flowContext.Request

	code := ""
	if request.TwoFactor != nil {
		code = request.TwoFactor.Code
	}

	ok, err := flowContext.Services.TwoFactorService.VerifyCode(ctx, request.UserID, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("Login rejected by second-factor check", "userID", request.UserID)
		return &StepResult{
			Error: &Error{
				Type:    ErrorTypeTwoFactor,
				Message: "invalid two-factor code",
			},
		}, nil
	}

	// A confirmed TOTP supersedes any other pending challenge on this
	// attempt, such as an emailed one-time code
	if code != "" {
		flowContext.Request.Challenges = nil
	}

	return &StepResult{Continue: true}, nil
}

// PostLoginStep updates last-login bookkeeping and fires the post-login
// event. Resumed sessions already logged in once; they must not re-trigger
// either.
type PostLoginStep struct{}

func NewPostLoginStep() *PostLoginStep {
	return &PostLoginStep{}
}

func (s *PostLoginStep) Name() string {
	return "post_login"
}

func (s *PostLoginStep) Order() int {
	return OrderPostLogin
}

func (s *PostLoginStep) ShouldSkip(ctx context.Context, flowContext *FlowContext) bool {
	return flowContext.Request.Type == AttemptResume
}

func (s *PostLoginStep) Execute(ctx context.Context, flowContext *FlowContext) (*StepResult, error) {
	request := flowContext.Request

	if recorder := flowContext.Services.Recorder; recorder != nil {
		if err := recorder.RecordLogin(ctx, request.UserID); err != nil {
			slog.Error("Failed to record login", "userID", request.UserID, "error", err)
		}
	}

	if events := flowContext.Services.Events; events != nil {
		events.NotifyUserChanged(ctx, request.UserID, userevents.Diff{
			"event": "login",
		})
	}

	return &StepResult{Continue: true}, nil
}

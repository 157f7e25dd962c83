package loginflow

import (
	"context"

	"github.com/google/uuid"

	"github.com/chatmesh/chatauth/pkg/twofactor"
	"github.com/chatmesh/chatauth/pkg/userevents"
)

// AttemptType classifies how a login attempt authenticates
type AttemptType string

const (
	// AttemptPassword is a normal credential login
	AttemptPassword AttemptType = "password"
	// AttemptResume re-authenticates an existing session token
	AttemptResume AttemptType = "resume"
	// AttemptProxy trusts an upstream authenticating proxy
	AttemptProxy AttemptType = "proxy"
	// AttemptCAS trusts a CAS single-sign-on ticket
	AttemptCAS AttemptType = "cas"
)

// Purpose narrows what a password-type attempt is for
type Purpose string

const (
	PurposeLogin             Purpose = "login"
	PurposePasswordReset     Purpose = "password-reset"
	PurposeEmailVerification Purpose = "email-verification"
)

// Error type constants
const (
	ErrorTypeStepFailed     = "step_execution_error"
	ErrorTypeTwoFactor      = "totp-invalid"
	ErrorTypeAlternateLogin = "alternate_login_error"
)

// TwoFactorPayload is the optional second factor carried by a login attempt
type TwoFactorPayload struct {
	Code   string `json:"code"`
	Method string `json:"method"`

	// Login is set when the second factor itself authenticated the user
	// (e.g. a TOTP-derived one-time login); the underlying handler chain
	// takes over with this nested request
	Login *Request `json:"login,omitempty"`
}

// Request is one login attempt entering the pipeline
type Request struct {
	Type    AttemptType `json:"type"`
	Purpose Purpose     `json:"purpose,omitempty"`

	// UserID is the account the credential check resolved; the pipeline
	// runs after primary authentication
	UserID uuid.UUID `json:"user_id"`

	// TokenHash identifies the session token minted for this attempt
	TokenHash string `json:"token_hash,omitempty"`

	// Challenges lists second-factor challenges still pending on this
	// attempt (e.g. an emailed one-time code)
	Challenges []string `json:"challenges,omitempty"`

	TwoFactor *TwoFactorPayload `json:"two_factor,omitempty"`
}

// Result is the pipeline's outcome
type Result struct {
	Success       bool      `json:"success"`
	UserID        uuid.UUID `json:"user_id,omitempty"`
	ErrorResponse *Error    `json:"error,omitempty"`
}

// Error is a login failure with a machine-readable type
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// LoginRecorder updates last-login bookkeeping after a successful attempt
type LoginRecorder interface {
	RecordLogin(ctx context.Context, userID uuid.UUID) error
}

// AlternateLoginHandler runs the underlying login-handler chain for a
// nested login request carried by the second-factor payload
type AlternateLoginHandler func(ctx context.Context, request Request) (*Result, error)

// ServiceDependencies contains the collaborators the pipeline steps use
type ServiceDependencies struct {
	TwoFactorService twofactor.TwoFactorService
	Recorder         LoginRecorder
	Events           userevents.Notifier
	AlternateLogin   AlternateLoginHandler
}

// Service runs login attempts through the default pipeline
type Service struct {
	executor *FlowExecutor
}

// NewService builds the default pipeline: bypass check, alternate login,
// second-factor check, post-login bookkeeping
func NewService(deps *ServiceDependencies) *Service {
	executor := NewFlowBuilder().
		AddStep(NewBypassStep()).
		AddStep(NewAlternateLoginStep()).
		AddStep(NewTwoFactorStep()).
		AddStep(NewPostLoginStep()).
		Build(deps)

	return &Service{executor: executor}
}

// ProcessLogin runs one login attempt through the pipeline
func (s *Service) ProcessLogin(ctx context.Context, request Request) Result {
	return s.executor.Execute(ctx, request)
}

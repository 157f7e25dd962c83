// Package loginflow runs login attempts through an ordered step pipeline.
//
// The pipeline sits after primary credential authentication and decides
// whether an attempt still needs a second factor:
//
//	deps := &loginflow.ServiceDependencies{
//		TwoFactorService: twoFactorService,
//		Recorder:         recorder,
//		Events:           dispatcher,
//	}
//	service := loginflow.NewService(deps)
//
//	result := service.ProcessLogin(ctx, loginflow.Request{
//		Type:      loginflow.AttemptPassword,
//		UserID:    userID,
//		TwoFactor: &loginflow.TwoFactorPayload{Code: "123456", Method: "totp"},
//	})
//
// The default pipeline:
//
//  1. BypassStep - resume, proxy, and CAS attempts, and password attempts
//     for password reset or email verification, skip the second factor
//  2. AlternateLoginStep - a nested login under the second-factor payload
//     hands control to the underlying handler chain
//  3. TwoFactorStep - the optional code goes to VerifyCode; enabled users
//     fail with a generic error when it is missing or wrong
//  4. PostLoginStep - last-login bookkeeping and the post-login event,
//     skipped for resumed sessions
//
// Custom pipelines can be assembled with FlowBuilder and any Step
// implementation.
package loginflow

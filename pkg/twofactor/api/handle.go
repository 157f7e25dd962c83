package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	idmerr "github.com/chatmesh/chatauth/pkg/errors"
	"github.com/chatmesh/chatauth/pkg/token"
	"github.com/chatmesh/chatauth/pkg/twofactor"
)

// Handle serves the second-factor management endpoints. Callers must be
// authenticated; the router is expected to sit behind jwtauth.Verifier.
type Handle struct {
	service twofactor.TwoFactorService
}

// NewHandle creates a new Handle
func NewHandle(service twofactor.TwoFactorService) *Handle {
	return &Handle{service: service}
}

// Routes returns an http.Handler for the second-factor API
func Routes(h *Handle) http.Handler {
	r := chi.NewRouter()

	r.Get("/status", h.GetStatus)
	r.Post("/enroll", h.PostEnroll)
	r.Post("/confirm", h.PostConfirm)
	r.Post("/disable", h.PostDisable)
	r.Post("/backup-codes/regenerate", h.PostRegenerateBackupCodes)

	return r
}

type codeRequest struct {
	Code string `json:"code"`
}

type statusResponse struct {
	Enabled bool `json:"enabled"`
}

type enrollResponse struct {
	TempSecret string `json:"temp_secret"`
	OtpauthURL string `json:"otpauth_url"`
}

type backupCodesResponse struct {
	PlainCodes []string `json:"backup_codes"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// authUserID pulls the authenticated user from the jwtauth context
func authUserID(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, idmerr.Unauthorized("missing or invalid token")
	}
	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, idmerr.Unauthorized("token has no subject")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, idmerr.Unauthorized("invalid subject in token")
	}
	return userID, nil
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := idmerr.MapErrorCodeToHTTPStatus(idmerr.GetCode(err))
	if errors.Is(err, twofactor.ErrEnrollmentNotStarted) {
		status = http.StatusBadRequest
	}
	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

// GetStatus reports whether the caller has an enabled second factor
// (GET /status)
func (h *Handle) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := authUserID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	enabled, err := h.service.IsEnabled(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to read second-factor status", "userID", userID, "error", err)
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, statusResponse{Enabled: enabled})
}

// PostEnroll starts enrollment and returns the pending secret
// (POST /enroll)
func (h *Handle) PostEnroll(w http.ResponseWriter, r *http.Request) {
	userID, err := authUserID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	enrollment, err := h.service.BeginEnrollment(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to begin enrollment", "userID", userID, "error", err)
		renderError(w, r, err)
		return
	}

	var resp enrollResponse
	if err := copier.Copy(&resp, &enrollment); err != nil {
		renderError(w, r, idmerr.InternalWrap(err, "failed to map response"))
		return
	}
	render.JSON(w, r, resp)
}

// PostConfirm completes enrollment and returns the one-time backup codes
// (POST /confirm)
func (h *Handle) PostConfirm(w http.ResponseWriter, r *http.Request) {
	userID, err := authUserID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var data codeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "unable to parse body"})
		return
	}

	// The confirming session survives the post-enrollment prune
	currentTokenHash := ""
	if raw := jwtauth.TokenFromHeader(r); raw != "" {
		currentTokenHash = token.HashToken(raw)
	}

	batch, err := h.service.ConfirmEnrollment(r.Context(), userID, data.Code, currentTokenHash)
	if err != nil {
		slog.Error("Failed to confirm enrollment", "userID", userID, "error", err)
		renderError(w, r, err)
		return
	}
	if batch == nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, errorResponse{Error: "invalid code"})
		return
	}

	var resp backupCodesResponse
	if err := copier.Copy(&resp.PlainCodes, &batch.PlainCodes); err != nil {
		renderError(w, r, idmerr.InternalWrap(err, "failed to map response"))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

// PostDisable turns the second factor off after a final code check
// (POST /disable)
func (h *Handle) PostDisable(w http.ResponseWriter, r *http.Request) {
	userID, err := authUserID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var data codeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "unable to parse body"})
		return
	}

	disabled, err := h.service.Disable(r.Context(), userID, data.Code)
	if err != nil {
		slog.Error("Failed to disable second factor", "userID", userID, "error", err)
		renderError(w, r, err)
		return
	}
	if !disabled {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, errorResponse{Error: "invalid code"})
		return
	}

	render.JSON(w, r, statusResponse{Enabled: false})
}

// PostRegenerateBackupCodes replaces the caller's backup codes
// (POST /backup-codes/regenerate)
func (h *Handle) PostRegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	userID, err := authUserID(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var data codeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "unable to parse body"})
		return
	}

	batch, err := h.service.RegenerateBackupCodes(r.Context(), userID, data.Code)
	if err != nil {
		slog.Error("Failed to regenerate backup codes", "userID", userID, "error", err)
		renderError(w, r, err)
		return
	}
	if batch == nil {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, errorResponse{Error: "invalid code"})
		return
	}

	var resp backupCodesResponse
	if err := copier.Copy(&resp.PlainCodes, &batch.PlainCodes); err != nil {
		renderError(w, r, idmerr.InternalWrap(err, "failed to map response"))
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, resp)
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmesh/chatauth/pkg/twofactor"
)

func setupHandler(t *testing.T) (*twofactor.Service, http.Handler, *jwtauth.JWTAuth) {
	t.Helper()

	repo := twofactor.NewInMemSecretRepository()
	service := twofactor.NewService(repo)
	tokenAuth := jwtauth.New("HS256", []byte("test-secret"), nil)

	r := chi.NewRouter()
	r.Use(jwtauth.Verifier(tokenAuth))
	r.Use(jwtauth.Authenticator(tokenAuth))
	r.Mount("/", Routes(NewHandle(service)))

	return service, r, tokenAuth
}

func bearerFor(t *testing.T, tokenAuth *jwtauth.JWTAuth, userID uuid.UUID) string {
	t.Helper()

	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{"sub": userID.String()})
	require.NoError(t, err)
	return "Bearer " + tokenString
}

func TestStatusRequiresAuth(t *testing.T) {
	_, handler, _ := setupHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollConfirmFlow(t *testing.T) {
	service, handler, tokenAuth := setupHandler(t)
	userID := uuid.New()
	bearer := bearerFor(t, tokenAuth, userID)

	// Not enrolled yet
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		Enabled bool `json:"enabled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Enabled)

	// Start enrollment
	req = httptest.NewRequest(http.MethodPost, "/enroll", nil)
	req.Header.Set("Authorization", bearer)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var enrollment struct {
		TempSecret string `json:"temp_secret"`
		OtpauthURL string `json:"otpauth_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &enrollment))
	assert.NotEmpty(t, enrollment.TempSecret)
	assert.Contains(t, enrollment.OtpauthURL, "otpauth://totp/")

	// Confirm with a valid code from the pending secret
	code, err := service.Verifier().GeneratePasscode(enrollment.TempSecret)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"code":"`+code+`"}`))
	req.Header.Set("Authorization", bearer)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var codes struct {
		BackupCodes []string `json:"backup_codes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &codes))
	assert.Len(t, codes.BackupCodes, twofactor.BackupCodeCount)

	// Now enabled
	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.Header.Set("Authorization", bearer)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Enabled)
}

func TestConfirmWithoutEnrollment(t *testing.T) {
	_, handler, tokenAuth := setupHandler(t)
	bearer := bearerFor(t, tokenAuth, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"code":"123456"}`))
	req.Header.Set("Authorization", bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmWrongCode(t *testing.T) {
	_, handler, tokenAuth := setupHandler(t)
	bearer := bearerFor(t, tokenAuth, uuid.New())

	req := httptest.NewRequest(http.MethodPost, "/enroll", nil)
	req.Header.Set("Authorization", bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/confirm", strings.NewReader(`{"code":"000000"}`))
	req.Header.Set("Authorization", bearer)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDisable(t *testing.T) {
	service, handler, tokenAuth := setupHandler(t)
	userID := uuid.New()
	bearer := bearerFor(t, tokenAuth, userID)

	// Enroll directly through the service
	enrollment, err := service.BeginEnrollment(httptest.NewRequest(http.MethodGet, "/", nil).Context(), userID)
	require.NoError(t, err)
	code, err := service.Verifier().GeneratePasscode(enrollment.TempSecret)
	require.NoError(t, err)
	_, err = service.ConfirmEnrollment(httptest.NewRequest(http.MethodGet, "/", nil).Context(), userID, code, "")
	require.NoError(t, err)

	// Wrong code is rejected
	req := httptest.NewRequest(http.MethodPost, "/disable", strings.NewReader(`{"code":"000000"}`))
	req.Header.Set("Authorization", bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Fresh code disables
	code, err = service.Verifier().GeneratePasscode(enrollment.TempSecret)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/disable", strings.NewReader(`{"code":"`+code+`"}`))
	req.Header.Set("Authorization", bearer)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegenerateBackupCodes(t *testing.T) {
	service, handler, tokenAuth := setupHandler(t)
	userID := uuid.New()
	bearer := bearerFor(t, tokenAuth, userID)

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	enrollment, err := service.BeginEnrollment(ctx, userID)
	require.NoError(t, err)
	code, err := service.Verifier().GeneratePasscode(enrollment.TempSecret)
	require.NoError(t, err)
	_, err = service.ConfirmEnrollment(ctx, userID, code, "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/backup-codes/regenerate", strings.NewReader(`{"code":"`+code+`"}`))
	req.Header.Set("Authorization", bearer)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var codes struct {
		BackupCodes []string `json:"backup_codes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &codes))
	assert.Len(t, codes.BackupCodes, twofactor.BackupCodeCount)
}

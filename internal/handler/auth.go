package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
	"github.com/josh-kwaku/stripe-wallet/internal/logging"
)

// accountNamespace scopes the name-based UUIDs derived from usernames.
var accountNamespace = uuid.MustParse("5b0f6a3e-8c1d-4e57-9f2a-7d41c6e0b392")

// AccountIDForUsername returns the stable wallet account id for a login name.
func AccountIDForUsername(username string) string {
	return uuid.NewSHA1(accountNamespace, []byte(username)).String()
}

type Credentials struct {
	Username     string
	PasswordHash string
}

type AuthHandler struct {
	creds  Credentials
	tokens auth.TokenConfig
}

func NewAuthHandler(creds Credentials, tokens auth.TokenConfig) *AuthHandler {
	return &AuthHandler{creds: creds, tokens: tokens}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Username == "" {
		errs = append(errs, FieldError{Field: "username", Message: "required"})
	}
	if r.Password == "" {
		errs = append(errs, FieldError{Field: "password", Message: "required"})
	}
	return errs
}

type loginResponse struct {
	Token     string `json:"token"`
	AccountID string `json:"account_id"`
	ExpiresAt string `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if h.creds.Username == "" || h.creds.PasswordHash == "" {
		log.Error("login attempted without configured credentials")
		RespondAppError(w, ErrMisconfigured, nil)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.creds.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(h.creds.PasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		log.Warn("login rejected", "username", req.Username)
		RespondAppError(w, ErrInvalidCredentials, nil)
		return
	}

	accountID := AccountIDForUsername(req.Username)
	token, claims, err := auth.GenerateToken(accountID, h.tokens)
	if err != nil {
		log.Error("failed to issue token", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("token issued", "account_id", accountID, "token_id", claims.TokenID)
	RespondSuccess(w, http.StatusOK, loginResponse{
		Token:     token,
		AccountID: accountID,
		ExpiresAt: claims.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

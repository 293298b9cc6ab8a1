package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/stripe-wallet/internal/auth"
)

var testTokens = auth.TokenConfig{
	Secret:   "handler-test-secret",
	Issuer:   "stripe-wallet",
	Audience: "stripe-wallet-clients",
	TTL:      time.Hour,
}

func testCredentials(t *testing.T) Credentials {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return Credentials{Username: "alice", PasswordHash: string(hash)}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		creds      func(t *testing.T) Credentials
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "valid credentials",
			creds:      testCredentials,
			body:       `{"username":"alice","password":"s3cret"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong password",
			creds:      testCredentials,
			body:       `{"username":"alice","password":"nope"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "unknown user",
			creds:      testCredentials,
			body:       `{"username":"mallory","password":"s3cret"}`,
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_CREDENTIALS",
		},
		{
			name:       "missing fields",
			creds:      testCredentials,
			body:       `{"username":""}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "invalid JSON",
			creds:      testCredentials,
			body:       `not-json`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "no credentials configured",
			creds:      func(*testing.T) Credentials { return Credentials{} },
			body:       `{"username":"alice","password":"s3cret"}`,
			wantStatus: http.StatusInternalServerError,
			wantCode:   "MISCONFIGURED",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewAuthHandler(tc.creds(t), testTokens)

			req := httptest.NewRequest(http.MethodPost, "/api/login/authenticate", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()

			h.Login(rr, req)

			assert.Equal(t, tc.wantStatus, rr.Code)
			resp := decodeResponse(t, rr)
			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}

			data := resp.Data.(map[string]any)
			token, _ := data["token"].(string)
			claims, err := auth.ValidateToken(token, testTokens)
			require.NoError(t, err)
			assert.Equal(t, AccountIDForUsername("alice"), claims.AccountID)
			assert.Equal(t, claims.AccountID, data["account_id"])
			assert.NotEmpty(t, data["expires_at"])
		})
	}
}

func TestAccountIDForUsername(t *testing.T) {
	assert.Equal(t, AccountIDForUsername("alice"), AccountIDForUsername("alice"))
	assert.NotEqual(t, AccountIDForUsername("alice"), AccountIDForUsername("bob"))
	assert.Len(t, AccountIDForUsername("alice"), 36)
}

// internal/realtime/auth_test.go

package realtime

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edustack/edustack-realtime/internal/chat"
	"github.com/edustack/edustack-realtime/internal/common/utils"
	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

const testSecret = "test-secret"

// stubUsers satisfies the one chat.Service method authentication needs
type stubUsers struct {
	chat.Service
	user *chat.UserInfo
	err  error
}

func (s *stubUsers) GetUserInfo(_ context.Context, _ int64) (*chat.UserInfo, error) {
	return s.user, s.err
}

func validUsers() *stubUsers {
	return &stubUsers{user: &chat.UserInfo{ID: 1, Username: "alice", IsActive: true}}
}

func TestExtractTokenPrefersAuthorizationHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("Authorization", "Bearer from-header")

	assert.Equal(t, "from-header", ExtractToken(r))
}

func TestExtractTokenAcceptsBareHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "raw-token")

	assert.Equal(t, "raw-token", ExtractToken(r))
}

func TestExtractTokenAcceptsXAuthTokenHeader(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	r.Header.Set("X-Auth-Token", "from-x-header")

	assert.Equal(t, "from-x-header", ExtractToken(r))
}

func TestExtractTokenFallsBackToQuery(t *testing.T) {
	for _, key := range []string{"token", "jwt", "access_token"} {
		r := httptest.NewRequest("GET", "/ws?"+key+"=from-query", nil)
		assert.Equal(t, "from-query", ExtractToken(r), key)
	}
}

func TestExtractTokenEmpty(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws", nil)

	assert.Empty(t, ExtractToken(r))
}

func TestAuthenticateValidToken(t *testing.T) {
	token, err := utils.GenerateJWT(1, "alice", testSecret, time.Hour)
	require.NoError(t, err)

	user, code, err := authenticate(context.Background(), token, testSecret, validUsers())
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "alice", user.Username)
}

func TestAuthenticateMissingToken(t *testing.T) {
	_, code, err := authenticate(context.Background(), "", testSecret, validUsers())
	assert.Error(t, err)
	assert.Equal(t, event.AuthErrNoToken, code)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	token, err := utils.GenerateJWT(1, "alice", testSecret, -time.Minute)
	require.NoError(t, err)

	_, code, err := authenticate(context.Background(), token, testSecret, validUsers())
	assert.Error(t, err)
	assert.Equal(t, event.AuthErrTokenExpired, code)
}

func TestAuthenticateMalformedToken(t *testing.T) {
	_, code, err := authenticate(context.Background(), "not-a-jwt", testSecret, validUsers())
	assert.Error(t, err)
	assert.Equal(t, event.AuthErrMalformedToken, code)
}

func TestAuthenticateWrongSignature(t *testing.T) {
	token, err := utils.GenerateJWT(1, "alice", "other-secret", time.Hour)
	require.NoError(t, err)

	_, code, err := authenticate(context.Background(), token, testSecret, validUsers())
	assert.Error(t, err)
	assert.Equal(t, event.AuthErrMalformedToken, code)
}

func TestAuthErrorCodeFallsBackToGeneric(t *testing.T) {
	// Token defects get their own codes; anything else reports the
	// generic connection code so clients keep a good token
	assert.Equal(t, event.AuthErrTokenExpired, authErrorCode(utils.ErrTokenExpired))
	assert.Equal(t, event.AuthErrMalformedToken, authErrorCode(utils.ErrTokenMalformed))
	assert.Equal(t, event.AuthErrMalformedToken, authErrorCode(utils.ErrTokenInvalid))
	assert.Equal(t, event.AuthErrConnection, authErrorCode(errors.New("keys unavailable")))
}

func TestAuthenticateUnknownUser(t *testing.T) {
	token, err := utils.GenerateJWT(42, "ghost", testSecret, time.Hour)
	require.NoError(t, err)

	users := &stubUsers{err: errors.New("user 42 not found")}
	_, code, err := authenticate(context.Background(), token, testSecret, users)
	assert.Error(t, err)
	assert.Equal(t, event.AuthErrUserValidation, code)
}

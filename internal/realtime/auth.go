// internal/realtime/auth.go
// Websocket handshake authentication. Rejections carry a typed auth_error
// event before the close frame so clients can tell a bad token from a
// flaky network and stop retrying.

package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/edustack/edustack-realtime/internal/chat"
	"github.com/edustack/edustack-realtime/internal/common/utils"
	"github.com/edustack/edustack-realtime/internal/realtime/event"
)

// ExtractToken pulls a credential from the places clients put it, in order
// of preference: Authorization header, X-Auth-Token header, then the
// token, jwt and access_token query parameters.
func ExtractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return header
	}
	if header := r.Header.Get("X-Auth-Token"); header != "" {
		return header
	}

	query := r.URL.Query()
	for _, key := range []string{"token", "jwt", "access_token"} {
		if value := query.Get(key); value != "" {
			return value
		}
	}

	return ""
}

// authenticate validates a handshake token end to end: signature, expiry
// and the user behind it. Returns a typed error code on failure.
func authenticate(ctx context.Context, token, secret string, users chat.Service) (*chat.UserInfo, string, error) {
	if token == "" {
		return nil, event.AuthErrNoToken, errors.New("no token provided")
	}

	claims, err := utils.ValidateJWT(token, secret)
	if err != nil {
		return nil, authErrorCode(err), err
	}

	user, err := users.GetUserInfo(ctx, claims.UserID)
	if err != nil {
		return nil, event.AuthErrUserValidation, err
	}

	return user, "", nil
}

// authErrorCode maps a token validation failure onto its wire code. Only
// defects of the token itself get a specific code; anything else reports
// the generic connection failure so clients do not discard a good token.
func authErrorCode(err error) string {
	switch {
	case errors.Is(err, utils.ErrTokenExpired):
		return event.AuthErrTokenExpired
	case errors.Is(err, utils.ErrTokenMalformed), errors.Is(err, utils.ErrTokenInvalid):
		return event.AuthErrMalformedToken
	default:
		return event.AuthErrConnection
	}
}

// rejectConnection sends a typed auth_error over the fresh socket, then
// closes with a policy violation so the client knows not to retry blindly.
func rejectConnection(conn *websocket.Conn, code, message string) {
	frame := event.MustMarshal(event.New(event.TypeAuthError, event.AuthErrorPayload{
		Type:    code,
		Message: message,
	}))

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, frame)
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, code))
	conn.Close()
}

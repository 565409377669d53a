// internal/realtime/event/payloads.go

package event

// Inbound payloads. Fields mirror what the single-page client sends.

type JoinRoomPayload struct {
	RoomID int64 `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID  int64  `json:"roomId"`
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
	ReplyTo *int64 `json:"replyTo,omitempty"`
}

type TypingPayload struct {
	RoomID int64 `json:"roomId"`
}

type AddReactionPayload struct {
	MessageID    int64  `json:"messageId"`
	ReactionType string `json:"reactionType"`
}

type CreateRoomPayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Type        string  `json:"type,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
	MemberIDs   []int64 `json:"memberIds,omitempty"`
	CourseID    *int64  `json:"courseId,omitempty"`
}

type SendPrivateMessagePayload struct {
	ConversationID int64  `json:"conversationId"`
	Content        string `json:"content"`
	Type           string `json:"type,omitempty"`
	FileURL        string `json:"fileUrl,omitempty"`
	FileName       string `json:"fileName,omitempty"`
	FileSize       *int64 `json:"fileSize,omitempty"`
	ReplyTo        *int64 `json:"replyTo,omitempty"`
}

type PrivateTypingPayload struct {
	ConversationID int64 `json:"conversationId"`
}

type MarkReadPayload struct {
	ConversationID int64   `json:"conversationId"`
	MessageIDs     []int64 `json:"messageIds"`
}

// Outbound payloads. Message, reaction and receipt events carry their
// domain structs directly; only channel-level payloads live here.

type UserTypingPayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	RoomID   int64  `json:"room_id"`
}

type PrivateUserTypingPayload struct {
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	ConversationID int64  `json:"conversation_id"`
}

type PresencePayload struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type JoinedRoomPayload struct {
	RoomID int64 `json:"room_id"`
}

type LeftRoomPayload struct {
	RoomID int64 `json:"room_id"`
}

// Auth error codes, sent before the server closes a rejected connection
const (
	AuthErrNoToken        = "NO_TOKEN"
	AuthErrTokenExpired   = "TOKEN_EXPIRED"
	AuthErrMalformedToken = "MALFORMED_TOKEN"
	AuthErrUserValidation = "USER_VALIDATION_FAILED"
	AuthErrConnection     = "CONNECTION_AUTH_ERROR"
)

type AuthErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

package model

import "time"

type ChatType string

const (
	ChatDirect ChatType = "DIRECT"
	ChatGroup  ChatType = "GROUP"
)

// Chat attribute names.
const (
	AttrUserCount             = "userCount"
	AttrMessagesCount         = "messagesCount"
	AttrLastMessageActivityAt = "lastMessageActivityAt"
	AttrMessagesUnviewedCount = "messagesUnviewedCount"
	AttrLastViewedAt          = "lastViewedAt"
	AttrLastEditedAt          = "lastEditedAt"
)

// Chat is a direct or group conversation.
type Chat struct {
	ChatID                string     `dynamodbav:"chatId"`
	Type                  ChatType   `dynamodbav:"chatType"`
	Name                  string     `dynamodbav:"name,omitempty"`
	CreatedByUserID       string     `dynamodbav:"createdByUserId"`
	CreatedAt             time.Time  `dynamodbav:"createdAt"`
	LastMessageActivityAt *time.Time `dynamodbav:"lastMessageActivityAt,omitempty"`
	UserIDs               []string   `dynamodbav:"userIds,omitempty"`
	UserCount             int64      `dynamodbav:"userCount"`
	MessagesCount         int64      `dynamodbav:"messagesCount,omitempty"`
	FlagCount             int64      `dynamodbav:"flagCount,omitempty"`
}

// ChatMember is a user's membership of a chat.
type ChatMember struct {
	ChatID                string     `dynamodbav:"chatId"`
	UserID                string     `dynamodbav:"userId"`
	JoinedAt              time.Time  `dynamodbav:"joinedAt"`
	LastMessageActivityAt time.Time  `dynamodbav:"lastMessageActivityAt"`
	LastViewedAt          *time.Time `dynamodbav:"lastViewedAt,omitempty"`
	MessagesUnviewedCount int64      `dynamodbav:"messagesUnviewedCount,omitempty"`
}

// DirectChatMarker reserves the direct chat between two users.
type DirectChatMarker struct {
	ChatID  string   `dynamodbav:"chatId"`
	UserIDs []string `dynamodbav:"userIds"`
}

// ChatMessage is a message in a chat. System messages have no author.
type ChatMessage struct {
	MessageID    string     `dynamodbav:"messageId"`
	ChatID       string     `dynamodbav:"chatId"`
	AuthorUserID string     `dynamodbav:"authorUserId,omitempty"`
	Text         string     `dynamodbav:"text"`
	CreatedAt    time.Time  `dynamodbav:"createdAt"`
	LastEditedAt *time.Time `dynamodbav:"lastEditedAt,omitempty"`
	FlagCount    int64      `dynamodbav:"flagCount,omitempty"`
}

// IsSystem reports whether the message was generated by the service.
func (m *ChatMessage) IsSystem() bool {
	return m.AuthorUserID == ""
}

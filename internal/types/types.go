package types

import (
	"time"
)

type MessageKind string

const (
	KindText    MessageKind = "text"
	KindImage   MessageKind = "image"
	KindFile    MessageKind = "file"
	KindSticker MessageKind = "sticker"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindFile, KindSticker:
		return true
	}
	return false
}

// Preview returns the text shown in chat lists for a message of this kind.
func (k MessageKind) Preview(content string) string {
	if k == KindText || k == "" {
		return content
	}
	return "[" + string(k) + "]"
}

type User struct {
	Id        int        `json:"id"`
	Username  string     `json:"username"`
	AvatarUrl string     `json:"avatar_url,omitempty"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

type ChatSummary struct {
	Id            int         `json:"id"`
	IsGroup       bool        `json:"is_group"`
	Title         string      `json:"title"`
	LastMessageAt *time.Time  `json:"last_message_at"`
	LastMessage   string      `json:"last_message,omitempty"`
	LastType      MessageKind `json:"last_type,omitempty"`
	UnreadCount   int         `json:"unread_count"`
}

type Message struct {
	Id             int         `json:"id"`
	ChatId         int         `json:"chat_id"`
	SenderId       int         `json:"sender_id"`
	Type           MessageKind `json:"type"`
	Content        string      `json:"content,omitempty"`
	FileUrl        string      `json:"file_url,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Deleted        bool        `json:"deleted"`
	SenderUsername string      `json:"sender_username"`
	SenderAvatar   string      `json:"sender_avatar,omitempty"`
}

type TypingEvent struct {
	ChatId int  `json:"chat"`
	UserId int  `json:"userId"`
	Typing bool `json:"typing"`
}

type ReactionEvent struct {
	MessageId int    `json:"messageId"`
	UserId    int    `json:"userId"`
	Emoji     string `json:"emoji"`
}

type ReadEvent struct {
	ChatId        int `json:"chat"`
	UserId        int `json:"userId"`
	LastMessageId int `json:"lastMessageId"`
}

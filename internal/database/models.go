package database

import "time"

type User struct {
	Id           int
	Username     string
	PasswordHash string
	AvatarUrl    string
	LastSeen     *time.Time
	CreatedAt    time.Time
}

type Chat struct {
	Id            int
	IsGroup       bool
	IsGlobal      bool
	Title         string
	LastMessageAt *time.Time
}

// ChatSummary is a row of the per-user chat list.
type ChatSummary struct {
	Id            int
	IsGroup       bool
	Title         string
	LastMessageAt *time.Time
	LastContent   string
	LastType      string
	UnreadCount   int
}

type Message struct {
	Id             int
	ChatId         int
	SenderId       int
	Type           string
	Content        string
	FileUrl        string
	CreatedAt      time.Time
	Deleted        bool
	SenderUsername string
	SenderAvatar   string
}

type PushSubscription struct {
	Id       int
	UserId   int
	Endpoint string
	P256dh   string
	Auth     string
}

type CreateAccountParams struct {
	Username     string
	PasswordHash string
}

type CreateMessageParams struct {
	ChatId    int
	SenderId  int
	Type      string
	Content   string
	FileUrl   string
	CreatedAt time.Time
}

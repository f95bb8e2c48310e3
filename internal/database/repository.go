package database

import (
	"context"
	"time"
)

// GoChatRepository is the durable store behind the synchronization engine.
// Every write is committed before the call returns.
type GoChatRepository interface {
	Ping(ctx context.Context) error
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, userId int) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	ListAccounts(ctx context.Context) ([]User, error)
	UpdateAvatar(ctx context.Context, userId int, avatarUrl string) (User, error)
	TouchLastSeen(ctx context.Context, userId int, at time.Time) error
	GetChat(ctx context.Context, chatId int) (Chat, error)
	IsParticipant(ctx context.Context, chatId, userId int) (bool, error)
	FindOrCreateDirectChat(ctx context.Context, userId, peerId int) (int, error)
	ListChatSummaries(ctx context.Context, userId int) ([]ChatSummary, error)
	ListParticipantIds(ctx context.Context, chatId int) ([]int, error)
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	GetMessages(ctx context.Context, chatId, limit int) ([]Message, error)
	GetMessageChatId(ctx context.Context, messageId int) (int, error)
	AdvanceReadPointer(ctx context.Context, chatId, userId, messageId int) (int, bool, error)
	UnreadCount(ctx context.Context, chatId, userId int) (int, error)
	AddReaction(ctx context.Context, messageId, userId int, emoji string) (bool, error)
	UpsertPushSubscription(ctx context.Context, sub PushSubscription) error
	ListPushSubscriptions(ctx context.Context, userId int) ([]PushSubscription, error)
	Close() error
}

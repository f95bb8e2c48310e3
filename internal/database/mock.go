package database

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockGoChatRepository struct {
	mock.Mock
}

func (m *MockGoChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) ListAccounts(ctx context.Context) ([]User, error) {
	args := m.Called()
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGoChatRepository) UpdateAvatar(ctx context.Context, userId int, avatarUrl string) (User, error) {
	args := m.Called(userId, avatarUrl)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) TouchLastSeen(ctx context.Context, userId int, at time.Time) error {
	args := m.Called(userId, at)
	return args.Error(0)
}
func (m *MockGoChatRepository) GetChat(ctx context.Context, chatId int) (Chat, error) {
	args := m.Called(chatId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockGoChatRepository) IsParticipant(ctx context.Context, chatId, userId int) (bool, error) {
	args := m.Called(chatId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoChatRepository) FindOrCreateDirectChat(ctx context.Context, userId, peerId int) (int, error) {
	args := m.Called(userId, peerId)
	return args.Int(0), args.Error(1)
}
func (m *MockGoChatRepository) ListChatSummaries(ctx context.Context, userId int) ([]ChatSummary, error) {
	args := m.Called(userId)
	return args.Get(0).([]ChatSummary), args.Error(1)
}
func (m *MockGoChatRepository) ListParticipantIds(ctx context.Context, chatId int) ([]int, error) {
	args := m.Called(chatId)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockGoChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGoChatRepository) GetMessages(ctx context.Context, chatId, limit int) ([]Message, error) {
	args := m.Called(chatId, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockGoChatRepository) GetMessageChatId(ctx context.Context, messageId int) (int, error) {
	args := m.Called(messageId)
	return args.Int(0), args.Error(1)
}
func (m *MockGoChatRepository) AdvanceReadPointer(ctx context.Context, chatId, userId, messageId int) (int, bool, error) {
	args := m.Called(chatId, userId, messageId)
	return args.Int(0), args.Bool(1), args.Error(2)
}
func (m *MockGoChatRepository) UnreadCount(ctx context.Context, chatId, userId int) (int, error) {
	args := m.Called(chatId, userId)
	return args.Int(0), args.Error(1)
}
func (m *MockGoChatRepository) AddReaction(ctx context.Context, messageId, userId int, emoji string) (bool, error) {
	args := m.Called(messageId, userId, emoji)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoChatRepository) UpsertPushSubscription(ctx context.Context, sub PushSubscription) error {
	args := m.Called(sub)
	return args.Error(0)
}
func (m *MockGoChatRepository) ListPushSubscriptions(ctx context.Context, userId int) ([]PushSubscription, error) {
	args := m.Called(userId)
	return args.Get(0).([]PushSubscription), args.Error(1)
}
func (m *MockGoChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

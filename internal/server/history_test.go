package server

import (
	"context"
	"testing"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinChat(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(1, "alice")
	repo.addUser(3, "carol")
	repo.addChat(7, 1)

	cs := newTestChatServer(t, repo, nil)
	alice := newTestClient(cs, "alice", 1)
	carol := newTestClient(cs, "carol", 3)

	require.NoError(t, cs.JoinChat(context.Background(), alice, 7))
	require.NoError(t, cs.JoinChat(context.Background(), carol, 1), "expected global chat to be open to everyone")

	err := cs.JoinChat(context.Background(), carol, 7)
	assert.Equal(t, chaterr.KindAuthorization, chaterr.KindOf(err))
	assert.False(t, carol.inRoom(7))

	err = cs.JoinChat(context.Background(), carol, 404)
	assert.Equal(t, chaterr.KindNotFound, chaterr.KindOf(err))

	cs.LeaveChat(alice, 7)
	assert.False(t, alice.inRoom(7))
}

func TestOpenDirectChat(t *testing.T) {
	repo := newMemRepo()
	repo.addUser(1, "alice")
	repo.addUser(2, "bob")
	cs := newTestChatServer(t, repo, nil)

	id, err := cs.OpenDirectChat(context.Background(), 1, 2)
	require.NoError(t, err)

	again, err := cs.OpenDirectChat(context.Background(), 2, 1)
	require.NoError(t, err)
	assert.Equal(t, id, again, "expected the same chat from either side")

	ok, err := repo.IsParticipant(context.Background(), id, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = cs.OpenDirectChat(context.Background(), 1, 1)
	assert.Equal(t, chaterr.KindValidation, chaterr.KindOf(err))

	_, err = cs.OpenDirectChat(context.Background(), 1, 0)
	assert.Equal(t, chaterr.KindValidation, chaterr.KindOf(err))

	_, err = cs.OpenDirectChat(context.Background(), 1, 42)
	assert.Equal(t, chaterr.KindNotFound, chaterr.KindOf(err))
}

func TestChatSummaries(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &database.MockGoChatRepository{}
	defer db.AssertExpectations(t)
	db.On("ListChatSummaries", 2).Return([]database.ChatSummary{
		{Id: 1, IsGroup: true, Title: "Global", LastMessageAt: &at, LastContent: "hello", LastType: "text", UnreadCount: 2},
		{Id: 9, Title: "alice", LastMessageAt: &at, LastContent: "cat.png", LastType: "image"},
		{Id: 10, Title: "bob"},
	}, nil)

	cs := newTestChatServer(t, db, nil)
	chats, err := cs.ChatSummaries(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, chats, 3)

	assert.Equal(t, "hello", chats[0].LastMessage)
	assert.Equal(t, 2, chats[0].UnreadCount)
	assert.Equal(t, "[image]", chats[1].LastMessage)
	assert.Equal(t, types.KindImage, chats[1].LastType)
	assert.Empty(t, chats[2].LastMessage)
	assert.Nil(t, chats[2].LastMessageAt)
}

func TestMessages_PageLimit(t *testing.T) {
	db := &database.MockGoChatRepository{}
	defer db.AssertExpectations(t)
	db.On("GetChat", 1).Return(database.Chat{Id: 1, IsGlobal: true}, nil)
	db.On("GetMessages", 1, DefaultMessagePageLimit).Return([]database.Message{
		{Id: 5, ChatId: 1, SenderId: 2, Type: "text", Content: "hi", SenderUsername: "bob"},
	}, nil)

	cs := newTestChatServer(t, db, nil)
	msgs, err := cs.Messages(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "bob", msgs[0].SenderUsername)
	assert.Equal(t, types.KindText, msgs[0].Type)
}

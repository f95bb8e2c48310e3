package server

import (
	"context"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// JoinChat subscribes the connection to a chat it is allowed to read.
func (cs *ChatServer) JoinChat(ctx context.Context, c *Client, chatId int) error {
	const op = "JoinChat"

	if chatId <= 0 {
		return chaterr.Validation(op, "chat is required")
	}
	if err := cs.authorize(ctx, op, chatId, c.user.Id); err != nil {
		return err
	}

	cs.router.Join(c, chatId)
	return nil
}

func (cs *ChatServer) LeaveChat(c *Client, chatId int) {
	cs.router.Leave(c, chatId)
}

// Messages returns the most recent page of a chat in ascending id order.
func (cs *ChatServer) Messages(ctx context.Context, chatId, userId int) ([]types.Message, error) {
	const op = "Messages"

	if chatId <= 0 {
		return nil, chaterr.Validation(op, "chat is required")
	}
	if err := cs.authorize(ctx, op, chatId, userId); err != nil {
		return nil, err
	}

	rows, err := cs.db.GetMessages(ctx, chatId, cs.pageLimit)
	if err != nil {
		return nil, err
	}

	messages := make([]types.Message, len(rows))
	for i, m := range rows {
		messages[i] = toMessage(m)
	}
	return messages, nil
}

func (cs *ChatServer) ChatSummaries(ctx context.Context, userId int) ([]types.ChatSummary, error) {
	rows, err := cs.db.ListChatSummaries(ctx, userId)
	if err != nil {
		return nil, err
	}

	chats := make([]types.ChatSummary, len(rows))
	for i, c := range rows {
		kind := types.MessageKind(c.LastType)
		chats[i] = types.ChatSummary{
			Id:            c.Id,
			IsGroup:       c.IsGroup,
			Title:         c.Title,
			LastMessageAt: c.LastMessageAt,
			LastType:      kind,
			UnreadCount:   c.UnreadCount,
		}
		if c.LastType != "" {
			chats[i].LastMessage = kind.Preview(c.LastContent)
		}
	}
	return chats, nil
}

// OpenDirectChat returns the direct chat between userId and peerId,
// creating it on first use.
func (cs *ChatServer) OpenDirectChat(ctx context.Context, userId, peerId int) (int, error) {
	const op = "OpenDirectChat"

	if peerId <= 0 {
		return 0, chaterr.Validation(op, "peerId is required")
	}
	if peerId == userId {
		return 0, chaterr.Validation(op, "cannot open a direct chat with yourself")
	}

	return cs.db.FindOrCreateDirectChat(ctx, userId, peerId)
}

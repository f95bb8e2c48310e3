package server

import (
	"context"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// MarkRead advances the user's read pointer for chatId and returns the
// effective pointer. An acknowledgment behind the current pointer leaves it
// unchanged and emits no event.
func (cs *ChatServer) MarkRead(ctx context.Context, chatId, userId, lastMessageId int) (int, error) {
	const op = "MarkRead"

	if chatId <= 0 || lastMessageId <= 0 {
		return 0, chaterr.Validation(op, "chat and lastMessageId are required")
	}
	if err := cs.authorize(ctx, op, chatId, userId); err != nil {
		return 0, err
	}

	msgChat, err := cs.db.GetMessageChatId(ctx, lastMessageId)
	if err != nil {
		return 0, err
	}
	if msgChat != chatId {
		return 0, chaterr.Validation(op, "message does not belong to chat")
	}

	unlock := cs.chatLocks.Lock(chatId)
	defer unlock()

	pointer, advanced, err := cs.db.AdvanceReadPointer(ctx, chatId, userId, lastMessageId)
	if err != nil {
		cs.log.Println("AdvanceReadPointer:", err)
		return 0, err
	}

	if advanced {
		cs.router.Broadcast(chatId, NewEvent(EventRead, types.ReadEvent{
			ChatId:        chatId,
			UserId:        userId,
			LastMessageId: pointer,
		}), nil)
	}

	return pointer, nil
}

// UnreadCount is always computed from the store.
func (cs *ChatServer) UnreadCount(ctx context.Context, chatId, userId int) (int, error) {
	if err := cs.authorize(ctx, "UnreadCount", chatId, userId); err != nil {
		return 0, err
	}
	return cs.db.UnreadCount(ctx, chatId, userId)
}

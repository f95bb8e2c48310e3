package server

import (
	"context"
	"strings"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const maxEmojiLen = 32

// React records emoji on a message. It reports whether the reaction is new;
// repeating an existing reaction succeeds without an event.
func (cs *ChatServer) React(ctx context.Context, messageId, userId int, emoji string) (bool, error) {
	const op = "React"

	emoji = strings.TrimSpace(emoji)
	if messageId <= 0 || emoji == "" {
		return false, chaterr.Validation(op, "messageId and emoji are required")
	}
	if len(emoji) > maxEmojiLen {
		return false, chaterr.Validation(op, "emoji is too long")
	}

	chatId, err := cs.db.GetMessageChatId(ctx, messageId)
	if err != nil {
		return false, err
	}
	if err := cs.authorize(ctx, op, chatId, userId); err != nil {
		return false, err
	}

	unlock := cs.chatLocks.Lock(chatId)
	defer unlock()

	added, err := cs.db.AddReaction(ctx, messageId, userId, emoji)
	if err != nil {
		cs.log.Println("AddReaction:", err)
		return false, err
	}

	if added {
		cs.router.Broadcast(chatId, NewEvent(EventReaction, types.ReactionEvent{
			MessageId: messageId,
			UserId:    userId,
			Emoji:     emoji,
		}), nil)
	}

	return added, nil
}

package server

import (
	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// SetTyping relays a typing signal to the other members of the chat. Typing
// state is not stored; clients expire stale indicators themselves.
func (cs *ChatServer) SetTyping(c *Client, chatId int, typing bool) error {
	if !c.inRoom(chatId) {
		return chaterr.Authorization("SetTyping", "chat not joined")
	}

	cs.router.Broadcast(chatId, NewEvent(EventTyping, types.TypingEvent{
		ChatId: chatId,
		UserId: c.user.Id,
		Typing: typing,
	}), c)

	return nil
}

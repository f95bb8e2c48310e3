package server

import (
	"context"
	"strings"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/types"
)

// authorize allows userId into chatId when the chat is global or the user
// is one of its participants.
func (cs *ChatServer) authorize(ctx context.Context, op string, chatId, userId int) error {
	chat, err := cs.db.GetChat(ctx, chatId)
	if err != nil {
		return err
	}
	if chat.IsGlobal {
		return nil
	}

	ok, err := cs.db.IsParticipant(ctx, chatId, userId)
	if err != nil {
		return err
	}
	if !ok {
		return chaterr.Authorization(op, "not a participant of this chat")
	}

	return nil
}

// CanPost reports whether userId may post into chatId. Callers that must do
// work before submitting, such as storing an upload, check it up front.
func (cs *ChatServer) CanPost(ctx context.Context, chatId, userId int) error {
	return cs.authorize(ctx, "CanPost", chatId, userId)
}

func validatePayload(op string, files Attachments, kind types.MessageKind, content, fileUrl string) error {
	switch kind {
	case types.KindText:
		if strings.TrimSpace(content) == "" {
			return chaterr.Validation(op, "content is required")
		}
	case types.KindImage, types.KindFile:
		if fileUrl == "" {
			return chaterr.Validation(op, "attachment is required")
		}
		if files == nil || !files.Owns(fileUrl) {
			return chaterr.Validation(op, "attachment must be uploaded first")
		}
	case types.KindSticker:
		if fileUrl == "" {
			return chaterr.Validation(op, "sticker url is required")
		}
	default:
		return chaterr.Validation(op, "unknown message type")
	}

	return nil
}

// SubmitMessage validates, persists and broadcasts a new message. The
// per-chat lock is held from insert to broadcast so every room sees
// messages in id order.
func (cs *ChatServer) SubmitMessage(ctx context.Context, chatId, senderId int, kind types.MessageKind, content, fileUrl string) (types.Message, error) {
	const op = "SubmitMessage"

	if kind == "" {
		kind = types.KindText
	}
	if chatId <= 0 {
		return types.Message{}, chaterr.Validation(op, "chat is required")
	}
	if err := validatePayload(op, cs.files, kind, content, fileUrl); err != nil {
		return types.Message{}, err
	}
	if err := cs.authorize(ctx, op, chatId, senderId); err != nil {
		return types.Message{}, err
	}

	unlock := cs.chatLocks.Lock(chatId)
	defer unlock()

	dbMsg, err := cs.db.CreateMessage(ctx, database.CreateMessageParams{
		ChatId:    chatId,
		SenderId:  senderId,
		Type:      string(kind),
		Content:   content,
		FileUrl:   fileUrl,
		CreatedAt: Now(),
	})
	if err != nil {
		cs.log.Println("CreateMessage:", err)
		return types.Message{}, err
	}

	msg := toMessage(dbMsg)
	cs.router.Broadcast(chatId, NewEvent(EventMessage, msg), nil)
	cs.stats.Incr("MessagesSubmitted")

	if cs.notifier != nil {
		cs.notifier.Notify(msg)
	}

	return msg, nil
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:             m.Id,
		ChatId:         m.ChatId,
		SenderId:       m.SenderId,
		Type:           types.MessageKind(m.Type),
		Content:        m.Content,
		FileUrl:        m.FileUrl,
		CreatedAt:      m.CreatedAt,
		Deleted:        m.Deleted,
		SenderUsername: m.SenderUsername,
		SenderAvatar:   m.SenderAvatar,
	}
}

package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	EventMessage  = "message"
	EventTyping   = "typing"
	EventReaction = "reaction"
	EventRead     = "read"
	EventPresence = "presence"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	Read    *Read    `json:"read,omitempty"`
	React   *React   `json:"react,omitempty"`
}

type Join struct {
	ChatId int `json:"chat"`
}

type Leave struct {
	ChatId int `json:"chat"`
}

type Typing struct {
	ChatId int  `json:"chat"`
	Typing bool `json:"typing"`
}

type Publish struct {
	ChatId  int               `json:"chat"`
	Type    types.MessageKind `json:"type"`
	Content string            `json:"content"`
	FileUrl string            `json:"file_url"`
}

type Read struct {
	ChatId        int `json:"chat"`
	LastMessageId int `json:"lastMessageId"`
}

type React struct {
	MessageId int    `json:"messageId"`
	Emoji     string `json:"emoji"`
}

// ServerMessage is either an ack for a client frame (Response set) or a
// pushed event (Event set).
type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    string    `json:"event,omitempty"`
	Data     any       `json:"data,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

func NewEvent(event string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: event,
		Data:  data,
	}
}

func NoErrOK(id int, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func newErrResponse(id, code int, msg string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        msg,
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return newErrResponse(id, http.StatusInternalServerError, "internal server error")
}

func ErrTooManyRequests(id int) *ServerMessage {
	return newErrResponse(id, http.StatusTooManyRequests, "rate limit exceeded")
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := newErrResponse(0, http.StatusBadRequest, "invalid message format")
	if id > 0 {
		msg.Id = id
	}
	return msg
}

// ErrFromError converts an engine error into an ack. Storage failures are
// reported without detail.
func ErrFromError(id int, err error) *ServerMessage {
	code, msg := StatusForError(err)
	return newErrResponse(id, code, msg)
}

// StatusForError maps an error kind to an HTTP status and a client-facing
// message.
func StatusForError(err error) (int, string) {
	var ce *chaterr.Error
	detail := err.Error()
	if errors.As(err, &ce) && ce.Err != nil {
		detail = ce.Err.Error()
	}

	switch chaterr.KindOf(err) {
	case chaterr.KindValidation:
		return http.StatusBadRequest, detail
	case chaterr.KindAuthorization:
		return http.StatusForbidden, detail
	case chaterr.KindNotFound:
		return http.StatusNotFound, "not found"
	case chaterr.KindConflict:
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "internal server error"
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}

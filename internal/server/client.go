package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/teris-io/shortid"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8192
	requestTimeout = 10 * time.Second

	framesPerSecond = 20
	frameBurst      = 40
)

type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	rooms      map[int]struct{}
	roomsLock  sync.RWMutex
	limiter    *rate.Limiter
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) (*Client, error) {
	id, err := shortid.Generate()
	if err != nil {
		return nil, err
	}

	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[int]struct{}),
		limiter:    rate.NewLimiter(rate.Limit(framesPerSecond), frameBurst),
		stop:       make(chan struct{}),
	}, nil
}

func (c *Client) Id() string {
	return c.id
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		if !c.limiter.Allow() {
			c.queueMessage(ErrTooManyRequests(msg.Id))
			continue
		}

		c.handleMessage(&msg)
	}
}

// handleMessage runs one client frame against the engine and queues its ack.
func (c *Client) handleMessage(msg *ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cs := c.chatServer
	var (
		data any
		err  error
	)

	switch {
	case msg.Join != nil:
		err = cs.JoinChat(ctx, c, msg.Join.ChatId)
		data = map[string]int{"chat": msg.Join.ChatId}
	case msg.Leave != nil:
		cs.LeaveChat(c, msg.Leave.ChatId)
		data = map[string]int{"chat": msg.Leave.ChatId}
	case msg.Typing != nil:
		err = cs.SetTyping(c, msg.Typing.ChatId, msg.Typing.Typing)
	case msg.Publish != nil:
		p := msg.Publish
		data, err = cs.SubmitMessage(ctx, p.ChatId, c.user.Id, p.Type, p.Content, p.FileUrl)
	case msg.Read != nil:
		var pointer int
		pointer, err = cs.MarkRead(ctx, msg.Read.ChatId, c.user.Id, msg.Read.LastMessageId)
		data = map[string]int{"chat": msg.Read.ChatId, "lastMessageId": pointer}
	case msg.React != nil:
		var added bool
		added, err = cs.React(ctx, msg.React.MessageId, c.user.Id, msg.React.Emoji)
		data = map[string]bool{"added": added}
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if err != nil {
		c.queueMessage(ErrFromError(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, data))
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for connection %q", c.id)
		return false
	}

	return true
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

// disconnect asks the write pump to close the connection. Safe to call
// more than once.
func (c *Client) disconnect() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

func (c *Client) cleanup() {
	c.chatServer.deregister(c)
	c.disconnect()
}

func (c *Client) addRoom(chatId int) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	c.rooms[chatId] = struct{}{}
}

func (c *Client) delRoom(chatId int) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()

	delete(c.rooms, chatId)
}

func (c *Client) inRoom(chatId int) bool {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	_, ok := c.rooms[chatId]
	return ok
}

func (c *Client) roomIds() []int {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()

	ids := make([]int, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

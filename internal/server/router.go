package server

import (
	"log"
	"sync"

	"github.com/npezzotti/go-chatsync/internal/stats"
)

// RoomRouter maps chat ids to the rooms of connections subscribed to them.
type RoomRouter struct {
	log   *log.Logger
	stats stats.StatsProvider
	mu    sync.RWMutex
	rooms map[int]*Room
}

func NewRoomRouter(logger *log.Logger, su stats.StatsProvider) *RoomRouter {
	return &RoomRouter{
		log:   logger,
		stats: su,
		rooms: make(map[int]*Room),
	}
}

// Join subscribes c to chatId. Joining twice is a no-op.
func (rr *RoomRouter) Join(c *Client, chatId int) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	r, ok := rr.rooms[chatId]
	if !ok {
		r = newRoom(chatId, rr.log)
		rr.rooms[chatId] = r
		rr.stats.Incr("NumActiveRooms")
		rr.log.Printf("opened room for chat %d", chatId)
	}

	if r.addClient(c) {
		c.addRoom(chatId)
	}
}

// Leave unsubscribes c from chatId. Leaving a chat that was never joined
// is a no-op.
func (rr *RoomRouter) Leave(c *Client, chatId int) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	rr.leave(c, chatId)
}

// LeaveAll removes c from every room it joined.
func (rr *RoomRouter) LeaveAll(c *Client) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	for _, chatId := range c.roomIds() {
		rr.leave(c, chatId)
	}
}

func (rr *RoomRouter) leave(c *Client, chatId int) {
	c.delRoom(chatId)

	r, ok := rr.rooms[chatId]
	if !ok {
		return
	}

	r.removeClient(c)
	if r.isEmpty() {
		delete(rr.rooms, chatId)
		rr.stats.Decr("NumActiveRooms")
		rr.log.Printf("closed room for chat %d", chatId)
	}
}

// Broadcast delivers msg to every connection subscribed to chatId except
// skip, which may be nil.
func (rr *RoomRouter) Broadcast(chatId int, msg *ServerMessage, skip *Client) {
	rr.mu.RLock()
	r, ok := rr.rooms[chatId]
	rr.mu.RUnlock()
	if !ok {
		return
	}

	r.broadcast(msg, skip)
}

// Subscribers returns the number of connections subscribed to chatId.
func (rr *RoomRouter) Subscribers(chatId int) int {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	if r, ok := rr.rooms[chatId]; ok {
		return r.size()
	}
	return 0
}

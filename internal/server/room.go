package server

import (
	"log"
	"sync"
)

// Room is the set of live connections subscribed to one chat. Fan-out
// happens under clientLock so events reach every member in submission order.
type Room struct {
	id         int
	clients    map[*Client]struct{}
	userMap    map[int]map[*Client]struct{}
	clientLock sync.RWMutex
	log        *log.Logger
}

func newRoom(id int, logger *log.Logger) *Room {
	return &Room{
		id:      id,
		clients: make(map[*Client]struct{}),
		userMap: make(map[int]map[*Client]struct{}),
		log:     logger,
	}
}

func (r *Room) addClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; ok {
		return false
	}

	r.clients[c] = struct{}{}
	if r.userMap[c.user.Id] == nil {
		r.userMap[c.user.Id] = make(map[*Client]struct{})
	}
	r.userMap[c.user.Id][c] = struct{}{}

	return true
}

func (r *Room) removeClient(c *Client) bool {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	if _, ok := r.clients[c]; !ok {
		return false
	}

	delete(r.clients, c)
	if userClients, ok := r.userMap[c.user.Id]; ok {
		delete(userClients, c)
		if len(userClients) == 0 {
			delete(r.userMap, c.user.Id)
		}
	}

	return true
}

func (r *Room) isEmpty() bool {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.clients) == 0
}

func (r *Room) size() int {
	r.clientLock.RLock()
	defer r.clientLock.RUnlock()
	return len(r.clients)
}

// broadcast queues msg on every member except skip. A member whose send
// buffer is full is disconnected so it can resync instead of missing events.
func (r *Room) broadcast(msg *ServerMessage, skip *Client) {
	r.clientLock.Lock()
	defer r.clientLock.Unlock()

	for client := range r.clients {
		if client == skip {
			continue
		}

		if !client.queueMessage(msg) {
			r.log.Printf("dropping slow client %q from chat %d", client.id, r.id)
			client.disconnect()
		}
	}
}

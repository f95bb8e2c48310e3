package server

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	DefaultMessagePageLimit = 1000
	storeTimeout            = 5 * time.Second
)

// Notifier receives every accepted message for out-of-band delivery. It
// must not block.
type Notifier interface {
	Notify(msg types.Message)
}

// Attachments reports whether a file URL was issued by the upload store.
type Attachments interface {
	Owns(url string) bool
}

type stopReq struct {
	done chan struct{}
}

// ChatServer owns the live connections. Presence transitions happen on the
// Run goroutine so presence events are emitted in transition order.
type ChatServer struct {
	log            *log.Logger
	db             database.GoChatRepository
	stats          stats.StatsProvider
	notifier       Notifier
	files          Attachments
	presence       *PresenceRegistry
	router         *RoomRouter
	chatLocks      *keyedMutex
	pageLimit      int
	clients        map[*Client]struct{}
	clientsLock    sync.RWMutex
	registerChan   chan *Client
	deRegisterChan chan *Client
	stop           chan stopReq
	done           chan struct{}
	bg             sync.WaitGroup
}

func NewChatServer(logger *log.Logger, db database.GoChatRepository, su stats.StatsProvider, notifier Notifier, files Attachments, pageLimit int) (*ChatServer, error) {
	for _, name := range []string{"NumActiveClients", "NumOnlineUsers", "NumActiveRooms"} {
		su.RegisterMetric(name)
	}
	su.RegisterCounter("MessagesSubmitted")

	if pageLimit <= 0 {
		pageLimit = DefaultMessagePageLimit
	}

	return &ChatServer{
		log:            logger,
		db:             db,
		stats:          su,
		notifier:       notifier,
		files:          files,
		presence:       NewPresenceRegistry(),
		router:         NewRoomRouter(logger, su),
		chatLocks:      newKeyedMutex(),
		pageLimit:      pageLimit,
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.registerChan:
			cs.log.Printf("adding connection %q from %q", client.id, client.user.Username)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection %q from %q", client.id, client.user.Username)
			cs.removeClient(client)
		case req := <-cs.stop:
			cs.log.Println("disconnecting clients")
			cs.clientsLock.RLock()
			for c := range cs.clients {
				c.disconnect()
			}
			cs.clientsLock.RUnlock()

			for _, userId := range cs.presence.Snapshot() {
				cs.stampLastSeen(userId)
			}

			close(cs.done)
			close(req.done)
			return
		}
	}
}

// Register hands a new connection to the hub. It reports false once the
// server is shutting down.
func (cs *ChatServer) Register(c *Client) bool {
	select {
	case cs.registerChan <- c:
		return true
	case <-cs.done:
		return false
	}
}

func (cs *ChatServer) deregister(c *Client) {
	select {
	case cs.deRegisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clientsLock.Lock()
	cs.clients[c] = struct{}{}
	cs.clientsLock.Unlock()
	cs.stats.Incr("NumActiveClients")

	if cs.presence.Connect(c.user.Id, c.id) {
		cs.stats.Incr("NumOnlineUsers")
		cs.broadcastPresence()
		return
	}

	// no transition, but the new connection still needs the current list
	c.queueMessage(NewEvent(EventPresence, cs.presence.Snapshot()))
}

func (cs *ChatServer) removeClient(c *Client) {
	cs.clientsLock.Lock()
	if _, ok := cs.clients[c]; !ok {
		cs.clientsLock.Unlock()
		return
	}
	delete(cs.clients, c)
	cs.clientsLock.Unlock()
	cs.stats.Decr("NumActiveClients")

	cs.router.LeaveAll(c)

	if cs.presence.Disconnect(c.user.Id, c.id) {
		cs.stats.Decr("NumOnlineUsers")
		cs.stampLastSeen(c.user.Id)
		cs.broadcastPresence()
	}
}

func (cs *ChatServer) broadcastPresence() {
	msg := NewEvent(EventPresence, cs.presence.Snapshot())

	cs.clientsLock.RLock()
	defer cs.clientsLock.RUnlock()

	for c := range cs.clients {
		if !c.queueMessage(msg) {
			c.disconnect()
		}
	}
}

// stampLastSeen records the offline transition without blocking the hub.
func (cs *ChatServer) stampLastSeen(userId int) {
	at := Now()
	cs.bg.Add(1)
	go func() {
		defer cs.bg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := cs.db.TouchLastSeen(ctx, userId, at); err != nil {
			cs.log.Println("TouchLastSeen:", err)
		}
	}()
}

// Online returns the ids of users with at least one live connection.
func (cs *ChatServer) Online() []int {
	return cs.presence.Snapshot()
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("received shutdown signal")

	req := stopReq{done: make(chan struct{})}
	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	finished := make(chan struct{})
	go func() {
		cs.bg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// keyedMutex serializes work per chat without blocking other chats.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[int]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[int]*refMutex)}
}

// Lock acquires the lock for key and returns its release func.
func (k *keyedMutex) Lock(key int) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

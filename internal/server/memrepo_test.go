package server

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/npezzotti/go-chatsync/internal/chaterr"
	"github.com/npezzotti/go-chatsync/internal/database"
)

type reactionKey struct {
	messageId int
	userId    int
	emoji     string
}

// memRepo is an in-memory GoChatRepository with the same semantics as the
// PostgreSQL implementation.
type memRepo struct {
	mu           sync.Mutex
	users        map[int]database.User
	chats        map[int]database.Chat
	participants map[int]map[int]bool
	dms          map[string]int
	messages     []database.Message
	reads        map[[2]int]int
	reactions    map[reactionKey]struct{}
	subs         map[int][]database.PushSubscription
	lastSeen     map[int]time.Time
	nextChatId   int
	nextMsgId    int
}

func newMemRepo() *memRepo {
	r := &memRepo{
		users:        make(map[int]database.User),
		chats:        make(map[int]database.Chat),
		participants: make(map[int]map[int]bool),
		dms:          make(map[string]int),
		reads:        make(map[[2]int]int),
		reactions:    make(map[reactionKey]struct{}),
		subs:         make(map[int][]database.PushSubscription),
		lastSeen:     make(map[int]time.Time),
		nextChatId:   2,
		nextMsgId:    100,
	}
	r.chats[1] = database.Chat{Id: 1, IsGroup: true, IsGlobal: true, Title: "Global"}
	return r
}

func (r *memRepo) addUser(id int, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[id] = database.User{Id: id, Username: name}
}

func (r *memRepo) addChat(id int, members ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[id] = database.Chat{Id: id, IsGroup: true}
	r.participants[id] = make(map[int]bool)
	for _, m := range members {
		r.participants[id][m] = true
	}
}

func (r *memRepo) reactionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reactions)
}

func (r *memRepo) Ping(ctx context.Context) error { return nil }

func (r *memRepo) CreateAccount(ctx context.Context, params database.CreateAccountParams) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == params.Username {
			return database.User{}, chaterr.E("CreateAccount", chaterr.KindConflict, nil)
		}
	}
	u := database.User{Id: len(r.users) + 1, Username: params.Username, PasswordHash: params.PasswordHash}
	r.users[u.Id] = u
	return u, nil
}

func (r *memRepo) GetAccountById(ctx context.Context, userId int) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userId]
	if !ok {
		return database.User{}, chaterr.NotFound("GetAccountById", "no such user")
	}
	return u, nil
}

func (r *memRepo) GetAccountByUsername(ctx context.Context, username string) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return database.User{}, chaterr.NotFound("GetAccountByUsername", "no such user")
}

func (r *memRepo) ListAccounts(ctx context.Context) ([]database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]database.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *memRepo) UpdateAvatar(ctx context.Context, userId int, avatarUrl string) (database.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[userId]
	u.AvatarUrl = avatarUrl
	r.users[userId] = u
	return u, nil
}

func (r *memRepo) TouchLastSeen(ctx context.Context, userId int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSeen[userId] = at
	return nil
}

func (r *memRepo) GetChat(ctx context.Context, chatId int) (database.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[chatId]
	if !ok {
		return database.Chat{}, chaterr.NotFound("GetChat", "no such chat")
	}
	return c, nil
}

func (r *memRepo) IsParticipant(ctx context.Context, chatId, userId int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participants[chatId][userId], nil
}

func (r *memRepo) FindOrCreateDirectChat(ctx context.Context, userId, peerId int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[peerId]; !ok {
		return 0, chaterr.NotFound("FindOrCreateDirectChat", "no such user")
	}
	key := fmt.Sprintf("%d:%d", min(userId, peerId), max(userId, peerId))
	if id, ok := r.dms[key]; ok {
		return id, nil
	}
	id := r.nextChatId
	r.nextChatId++
	r.chats[id] = database.Chat{Id: id}
	r.participants[id] = map[int]bool{userId: true, peerId: true}
	r.dms[key] = id
	return id, nil
}

func (r *memRepo) ListChatSummaries(ctx context.Context, userId int) ([]database.ChatSummary, error) {
	return nil, nil
}

func (r *memRepo) ListParticipantIds(ctx context.Context, chatId int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int, 0)
	for id := range r.participants[chatId] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *memRepo) CreateMessage(ctx context.Context, params database.CreateMessageParams) (database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[params.ChatId]
	if !ok {
		return database.Message{}, chaterr.NotFound("CreateMessage", "no such chat")
	}
	r.nextMsgId++
	m := database.Message{
		Id:             r.nextMsgId,
		ChatId:         params.ChatId,
		SenderId:       params.SenderId,
		Type:           params.Type,
		Content:        params.Content,
		FileUrl:        params.FileUrl,
		CreatedAt:      params.CreatedAt,
		SenderUsername: r.users[params.SenderId].Username,
		SenderAvatar:   r.users[params.SenderId].AvatarUrl,
	}
	r.messages = append(r.messages, m)
	at := params.CreatedAt
	c.LastMessageAt = &at
	r.chats[params.ChatId] = c
	return m, nil
}

func (r *memRepo) GetMessages(ctx context.Context, chatId, limit int) ([]database.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	page := make([]database.Message, 0)
	for _, m := range r.messages {
		if m.ChatId == chatId && !m.Deleted {
			page = append(page, m)
		}
	}
	if len(page) > limit {
		page = page[len(page)-limit:]
	}
	return page, nil
}

func (r *memRepo) GetMessageChatId(ctx context.Context, messageId int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.Id == messageId {
			return m.ChatId, nil
		}
	}
	return 0, chaterr.NotFound("GetMessageChatId", "no such message")
}

func (r *memRepo) AdvanceReadPointer(ctx context.Context, chatId, userId, messageId int) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int{chatId, userId}
	current := r.reads[key]
	if messageId <= current {
		return current, false, nil
	}
	r.reads[key] = messageId
	return messageId, true, nil
}

func (r *memRepo) UnreadCount(ctx context.Context, chatId, userId int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pointer := r.reads[[2]int{chatId, userId}]
	n := 0
	for _, m := range r.messages {
		if m.ChatId == chatId && !m.Deleted && m.Id > pointer {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) AddReaction(ctx context.Context, messageId, userId int, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{messageId, userId, emoji}
	if _, ok := r.reactions[key]; ok {
		return false, nil
	}
	r.reactions[key] = struct{}{}
	return true, nil
}

func (r *memRepo) UpsertPushSubscription(ctx context.Context, sub database.PushSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.UserId] = append(r.subs[sub.UserId], sub)
	return nil
}

func (r *memRepo) ListPushSubscriptions(ctx context.Context, userId int) ([]database.PushSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs[userId], nil
}

func (r *memRepo) Close() error { return nil }

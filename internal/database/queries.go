package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	createAccountQuery = "INSERT INTO users (username, password_hash, created_at) " +
		"VALUES ($1, $2, $3) RETURNING id, username, created_at"

	getAccountByIdQuery = "SELECT id, username, password_hash, avatar_url, last_seen, created_at " +
		"FROM users WHERE id = $1 LIMIT 1"

	getAccountByUsernameQuery = "SELECT id, username, password_hash, avatar_url, last_seen, created_at " +
		"FROM users WHERE username = $1 LIMIT 1"

	listAccountsQuery = "SELECT id, username, password_hash, avatar_url, last_seen, created_at " +
		"FROM users ORDER BY username ASC"

	updateAvatarQuery = "UPDATE users SET avatar_url = $2 WHERE id = $1 " +
		"RETURNING id, username, password_hash, avatar_url, last_seen, created_at"

	touchLastSeenQuery = "UPDATE users SET last_seen = $2 WHERE id = $1"

	getChatQuery = "SELECT id, is_group, is_global, title, last_message_at FROM chats WHERE id = $1 LIMIT 1"

	isParticipantQuery = "SELECT EXISTS (SELECT 1 FROM chat_participants WHERE chat_id = $1 AND user_id = $2)"

	insertDirectChatQuery = "INSERT INTO chats (is_group, is_global, dm_key) VALUES (FALSE, FALSE, $1) " +
		"ON CONFLICT (dm_key) DO NOTHING RETURNING id"

	getDirectChatQuery = "SELECT id FROM chats WHERE dm_key = $1"

	insertParticipantsQuery = "INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2), ($1, $3)"

	listParticipantIdsQuery = "SELECT user_id FROM chat_participants WHERE chat_id = $1 ORDER BY user_id"

	listChatSummariesQuery = `
		SELECT
				c.id,
				c.is_group,
				COALESCE(c.title, (
					SELECT u.username FROM chat_participants p
					JOIN users u ON u.id = p.user_id
					WHERE p.chat_id = c.id AND p.user_id <> $1
					ORDER BY u.id LIMIT 1
				), '') AS title,
				c.last_message_at,
				lm.content,
				lm.type,
				(
					SELECT COUNT(*) FROM messages m
					WHERE m.chat_id = c.id
						AND m.deleted = FALSE
						AND m.id > COALESCE((
							SELECT r.last_read_message_id FROM chat_reads r
							WHERE r.chat_id = c.id AND r.user_id = $1
						), 0)
				) AS unread_count
		FROM chats c
		LEFT JOIN LATERAL (
			SELECT m.content, m.type FROM messages m
			WHERE m.chat_id = c.id AND m.deleted = FALSE
			ORDER BY m.id DESC LIMIT 1
		) lm ON TRUE
		WHERE c.is_global
			OR EXISTS (SELECT 1 FROM chat_participants p WHERE p.chat_id = c.id AND p.user_id = $1)
		ORDER BY c.last_message_at DESC NULLS LAST, c.id ASC`

	lockChatQuery = "SELECT id FROM chats WHERE id = $1 FOR UPDATE"

	insertMessageQuery = "INSERT INTO messages (chat_id, sender_id, type, content, file_url, created_at) " +
		"VALUES ($1, $2, $3, $4, $5, $6) RETURNING id"

	touchChatQuery = "UPDATE chats SET last_message_at = $2 WHERE id = $1"

	getSenderQuery = "SELECT username, avatar_url FROM users WHERE id = $1"

	getMessagesQuery = `
		SELECT id, chat_id, sender_id, type, content, file_url, created_at, deleted, username, avatar_url
		FROM (
			SELECT m.id, m.chat_id, m.sender_id, m.type, m.content, m.file_url, m.created_at, m.deleted,
				u.username, u.avatar_url
			FROM messages m
			JOIN users u ON u.id = m.sender_id
			WHERE m.chat_id = $1 AND m.deleted = FALSE
			ORDER BY m.id DESC
			LIMIT $2
		) page
		ORDER BY id ASC`

	getMessageChatIdQuery = "SELECT chat_id FROM messages WHERE id = $1"

	lockReadPointerQuery = "SELECT last_read_message_id FROM chat_reads WHERE chat_id = $1 AND user_id = $2 FOR UPDATE"

	upsertReadPointerQuery = "INSERT INTO chat_reads (chat_id, user_id, last_read_message_id, updated_at) " +
		"VALUES ($1, $2, $3, $4) " +
		"ON CONFLICT (chat_id, user_id) DO UPDATE SET " +
		"last_read_message_id = GREATEST(chat_reads.last_read_message_id, EXCLUDED.last_read_message_id), " +
		"updated_at = EXCLUDED.updated_at " +
		"RETURNING last_read_message_id"

	unreadCountQuery = "SELECT COUNT(*) FROM messages m " +
		"WHERE m.chat_id = $1 AND m.deleted = FALSE AND m.id > COALESCE(" +
		"(SELECT r.last_read_message_id FROM chat_reads r WHERE r.chat_id = $1 AND r.user_id = $2), 0)"

	addReactionQuery = "INSERT INTO message_reactions (message_id, user_id, emoji, created_at) " +
		"VALUES ($1, $2, $3, $4) ON CONFLICT (message_id, user_id, emoji) DO NOTHING"

	upsertPushSubscriptionQuery = "INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth, created_at) " +
		"VALUES ($1, $2, $3, $4, $5) " +
		"ON CONFLICT (user_id, endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth"

	listPushSubscriptionsQuery = "SELECT id, user_id, endpoint, p256dh, auth FROM push_subscriptions " +
		"WHERE user_id = $1 ORDER BY id"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var (
		u        User
		avatar   sql.NullString
		lastSeen sql.NullTime
	)
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.PasswordHash,
		&avatar,
		&lastSeen,
		&u.CreatedAt,
	)
	u.AvatarUrl = avatar.String
	u.LastSeen = timePtr(lastSeen)
	return u, err
}

func (db *PgGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	res := db.conn.QueryRowContext(ctx,
		createAccountQuery,
		params.Username,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	if err := res.Scan(&u.Id, &u.Username, &u.CreatedAt); err != nil {
		return User{}, translateErr("CreateAccount", err)
	}
	u.PasswordHash = params.PasswordHash

	return u, nil
}

func (db *PgGoChatRepository) GetAccountById(ctx context.Context, userId int) (User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, getAccountByIdQuery, userId))
	if err != nil {
		return User{}, translateErr("GetAccountById", err)
	}
	return u, nil
}

func (db *PgGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, getAccountByUsernameQuery, username))
	if err != nil {
		return User{}, translateErr("GetAccountByUsername", err)
	}
	return u, nil
}

func (db *PgGoChatRepository) ListAccounts(ctx context.Context) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx, listAccountsQuery)
	if err != nil {
		return nil, translateErr("ListAccounts", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, translateErr("ListAccounts", err)
		}
		users = append(users, u)
	}

	return users, translateErr("ListAccounts", rows.Err())
}

func (db *PgGoChatRepository) UpdateAvatar(ctx context.Context, userId int, avatarUrl string) (User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, updateAvatarQuery, userId, avatarUrl))
	if err != nil {
		return User{}, translateErr("UpdateAvatar", err)
	}
	return u, nil
}

func (db *PgGoChatRepository) TouchLastSeen(ctx context.Context, userId int, at time.Time) error {
	_, err := db.conn.ExecContext(ctx, touchLastSeenQuery, userId, at)
	return translateErr("TouchLastSeen", err)
}

func (db *PgGoChatRepository) GetChat(ctx context.Context, chatId int) (Chat, error) {
	var (
		c             Chat
		title         sql.NullString
		lastMessageAt sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx, getChatQuery, chatId).Scan(
		&c.Id,
		&c.IsGroup,
		&c.IsGlobal,
		&title,
		&lastMessageAt,
	)
	if err != nil {
		return Chat{}, translateErr("GetChat", err)
	}

	c.Title = title.String
	c.LastMessageAt = timePtr(lastMessageAt)
	return c, nil
}

func (db *PgGoChatRepository) IsParticipant(ctx context.Context, chatId, userId int) (bool, error) {
	var ok bool
	if err := db.conn.QueryRowContext(ctx, isParticipantQuery, chatId, userId).Scan(&ok); err != nil {
		return false, translateErr("IsParticipant", err)
	}
	return ok, nil
}

// directChatKey is order independent so both members resolve the same chat.
func directChatKey(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

func (db *PgGoChatRepository) FindOrCreateDirectChat(ctx context.Context, userId, peerId int) (chatId int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, translateErr("FindOrCreateDirectChat", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	key := directChatKey(userId, peerId)
	err = tx.QueryRowContext(ctx, insertDirectChatQuery, key).Scan(&chatId)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race or the pair already exists
		if err = tx.QueryRowContext(ctx, getDirectChatQuery, key).Scan(&chatId); err != nil {
			return 0, translateErr("FindOrCreateDirectChat", err)
		}
		if err = tx.Commit(); err != nil {
			return 0, translateErr("FindOrCreateDirectChat", err)
		}
		return chatId, nil
	}
	if err != nil {
		return 0, translateErr("FindOrCreateDirectChat", err)
	}

	if _, err = tx.ExecContext(ctx, insertParticipantsQuery, chatId, userId, peerId); err != nil {
		return 0, translateErr("FindOrCreateDirectChat", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, translateErr("FindOrCreateDirectChat", err)
	}

	return chatId, nil
}

func (db *PgGoChatRepository) ListChatSummaries(ctx context.Context, userId int) ([]ChatSummary, error) {
	rows, err := db.conn.QueryContext(ctx, listChatSummariesQuery, userId)
	if err != nil {
		return nil, translateErr("ListChatSummaries", err)
	}
	defer rows.Close()

	chats := make([]ChatSummary, 0)
	for rows.Next() {
		var (
			c             ChatSummary
			lastMessageAt sql.NullTime
			lastContent   sql.NullString
			lastType      sql.NullString
		)
		if err := rows.Scan(
			&c.Id,
			&c.IsGroup,
			&c.Title,
			&lastMessageAt,
			&lastContent,
			&lastType,
			&c.UnreadCount,
		); err != nil {
			return nil, translateErr("ListChatSummaries", err)
		}

		c.LastMessageAt = timePtr(lastMessageAt)
		c.LastContent = lastContent.String
		c.LastType = lastType.String
		chats = append(chats, c)
	}

	return chats, translateErr("ListChatSummaries", rows.Err())
}

func (db *PgGoChatRepository) ListParticipantIds(ctx context.Context, chatId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx, listParticipantIdsQuery, chatId)
	if err != nil {
		return nil, translateErr("ListParticipantIds", err)
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, translateErr("ListParticipantIds", err)
		}
		ids = append(ids, id)
	}

	return ids, translateErr("ListParticipantIds", rows.Err())
}

// CreateMessage inserts the message and bumps the chat's last activity in
// one transaction. The chat row lock serializes writers per chat so ids
// commit in allocation order.
func (db *PgGoChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (msg Message, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var locked int
	if err = tx.QueryRowContext(ctx, lockChatQuery, params.ChatId).Scan(&locked); err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}

	msg = Message{
		ChatId:    params.ChatId,
		SenderId:  params.SenderId,
		Type:      params.Type,
		Content:   params.Content,
		FileUrl:   params.FileUrl,
		CreatedAt: params.CreatedAt,
	}

	err = tx.QueryRowContext(ctx,
		insertMessageQuery,
		params.ChatId,
		params.SenderId,
		params.Type,
		nullString(params.Content),
		nullString(params.FileUrl),
		params.CreatedAt,
	).Scan(&msg.Id)
	if err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}

	if _, err = tx.ExecContext(ctx, touchChatQuery, params.ChatId, params.CreatedAt); err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}

	var avatar sql.NullString
	if err = tx.QueryRowContext(ctx, getSenderQuery, params.SenderId).Scan(&msg.SenderUsername, &avatar); err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}
	msg.SenderAvatar = avatar.String

	if err = tx.Commit(); err != nil {
		return Message{}, translateErr("CreateMessage", err)
	}

	return msg, nil
}

func (db *PgGoChatRepository) GetMessages(ctx context.Context, chatId, limit int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx, getMessagesQuery, chatId, limit)
	if err != nil {
		return nil, translateErr("GetMessages", err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var (
			msg     Message
			content sql.NullString
			fileUrl sql.NullString
			avatar  sql.NullString
		)
		if err := rows.Scan(
			&msg.Id,
			&msg.ChatId,
			&msg.SenderId,
			&msg.Type,
			&content,
			&fileUrl,
			&msg.CreatedAt,
			&msg.Deleted,
			&msg.SenderUsername,
			&avatar,
		); err != nil {
			return nil, translateErr("GetMessages", err)
		}

		msg.Content = content.String
		msg.FileUrl = fileUrl.String
		msg.SenderAvatar = avatar.String
		messages = append(messages, msg)
	}

	return messages, translateErr("GetMessages", rows.Err())
}

func (db *PgGoChatRepository) GetMessageChatId(ctx context.Context, messageId int) (int, error) {
	var chatId int
	if err := db.conn.QueryRowContext(ctx, getMessageChatIdQuery, messageId).Scan(&chatId); err != nil {
		return 0, translateErr("GetMessageChatId", err)
	}
	return chatId, nil
}

// AdvanceReadPointer moves the user's read pointer forward and never back.
// It returns the effective pointer and whether it moved.
func (db *PgGoChatRepository) AdvanceReadPointer(ctx context.Context, chatId, userId, messageId int) (pointer int, advanced bool, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, translateErr("AdvanceReadPointer", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var current int
	err = tx.QueryRowContext(ctx, lockReadPointerQuery, chatId, userId).Scan(&current)
	switch {
	case err == nil:
		if messageId <= current {
			if err = tx.Commit(); err != nil {
				return 0, false, translateErr("AdvanceReadPointer", err)
			}
			return current, false, nil
		}
	case errors.Is(err, sql.ErrNoRows):
		current = 0
	default:
		return 0, false, translateErr("AdvanceReadPointer", err)
	}

	err = tx.QueryRowContext(ctx,
		upsertReadPointerQuery,
		chatId,
		userId,
		messageId,
		time.Now().UTC(),
	).Scan(&pointer)
	if err != nil {
		return 0, false, translateErr("AdvanceReadPointer", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, false, translateErr("AdvanceReadPointer", err)
	}

	return pointer, pointer > current, nil
}

func (db *PgGoChatRepository) UnreadCount(ctx context.Context, chatId, userId int) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, unreadCountQuery, chatId, userId).Scan(&n); err != nil {
		return 0, translateErr("UnreadCount", err)
	}
	return n, nil
}

// AddReaction reports whether a new row was stored; a duplicate is not an error.
func (db *PgGoChatRepository) AddReaction(ctx context.Context, messageId, userId int, emoji string) (bool, error) {
	res, err := db.conn.ExecContext(ctx, addReactionQuery, messageId, userId, emoji, time.Now().UTC())
	if err != nil {
		return false, translateErr("AddReaction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, translateErr("AddReaction", err)
	}

	return n == 1, nil
}

func (db *PgGoChatRepository) UpsertPushSubscription(ctx context.Context, sub PushSubscription) error {
	_, err := db.conn.ExecContext(ctx,
		upsertPushSubscriptionQuery,
		sub.UserId,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
		time.Now().UTC(),
	)
	return translateErr("UpsertPushSubscription", err)
}

func (db *PgGoChatRepository) ListPushSubscriptions(ctx context.Context, userId int) ([]PushSubscription, error) {
	rows, err := db.conn.QueryContext(ctx, listPushSubscriptionsQuery, userId)
	if err != nil {
		return nil, translateErr("ListPushSubscriptions", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0)
	for rows.Next() {
		var s PushSubscription
		if err := rows.Scan(&s.Id, &s.UserId, &s.Endpoint, &s.P256dh, &s.Auth); err != nil {
			return nil, translateErr("ListPushSubscriptions", err)
		}
		subs = append(subs, s)
	}

	return subs, translateErr("ListPushSubscriptions", rows.Err())
}

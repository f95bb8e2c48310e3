package api

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-chatsync/internal/attachments"
	"github.com/npezzotti/go-chatsync/internal/database"
	"github.com/npezzotti/go-chatsync/internal/server"
	"github.com/npezzotti/go-chatsync/internal/types"
)

const (
	// multipart bodies carry some framing on top of the file itself
	maxUploadBody   = 21 << 20
	maxFormMemory   = 8 << 20
	uploadFileField = "file"
	avatarFileField = "avatar"
)

type PostMessageRequest struct {
	ChatId  int               `json:"chatId"`
	Content string            `json:"content"`
	Type    types.MessageKind `json:"type"`
}

type StickerRequest struct {
	ChatId int    `json:"chatId"`
	Url    string `json:"url"`
}

type DirectChatRequest struct {
	PeerId int `json:"peerId"`
}

type DirectChatResponse struct {
	ChatId int `json:"chatId"`
}

type ReadRequest struct {
	ChatId        int `json:"chatId"`
	LastMessageId int `json:"lastMessageId"`
}

type ReadResponse struct {
	Ok            bool `json:"ok"`
	LastMessageId int  `json:"lastMessageId"`
}

type ReactRequest struct {
	MessageId int    `json:"messageId"`
	Emoji     string `json:"emoji"`
}

type ReactResponse struct {
	Ok    bool `json:"ok"`
	Added bool `json:"added"`
}

type PushKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type PushSubscribeRequest struct {
	Endpoint string   `json:"endpoint"`
	Keys     PushKeys `json:"keys"`
}

type PublicKeyResponse struct {
	Key string `json:"key"`
}

type OkResponse struct {
	Ok bool `json:"ok"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeError maps err onto an ApiError and logs anything the caller is not
// told about.
func (s *GoChatApp) writeError(w http.ResponseWriter, err error) {
	errResp := NewErrorFromKind(err)
	if errResp.StatusCode == http.StatusInternalServerError {
		s.log.Printf("request failed: %v", err)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *GoChatApp) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return false
	}
	return true
}

func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, toUser(u))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoChatApp) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	url, _, ok := s.saveUpload(w, r, avatarFileField)
	if !ok {
		return
	}

	user, err := s.db.UpdateAvatar(r.Context(), userId, url)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, toUser(user))
}

func (s *GoChatApp) listChats(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chats, err := s.cs.ChatSummaries(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, chats)
}

func (s *GoChatApp) openDirectChat(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req DirectChatRequest
	if !s.decode(w, r, &req) {
		return
	}

	chatId, err := s.cs.OpenDirectChat(r.Context(), userId, req.PeerId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, DirectChatResponse{ChatId: chatId})
}

func (s *GoChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req ReadRequest
	if !s.decode(w, r, &req) {
		return
	}

	pointer, err := s.cs.MarkRead(r.Context(), req.ChatId, userId, req.LastMessageId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, ReadResponse{Ok: true, LastMessageId: pointer})
}

func (s *GoChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := strconv.Atoi(r.URL.Query().Get("chatId"))
	if err != nil || chatId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.cs.Messages(r.Context(), chatId, userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *GoChatApp) postMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req PostMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	msg, err := s.cs.SubmitMessage(r.Context(), req.ChatId, userId, req.Type, req.Content, "")
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *GoChatApp) uploadMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		s.writeUploadError(w, err)
		return
	}

	chatId, err := strconv.Atoi(r.FormValue("chatId"))
	if err != nil || chatId <= 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.CanPost(r.Context(), chatId, userId); err != nil {
		s.writeError(w, err)
		return
	}

	url, header, ok := s.saveUpload(w, r, uploadFileField)
	if !ok {
		return
	}

	kind := types.KindFile
	if strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		kind = types.KindImage
	}

	msg, err := s.cs.SubmitMessage(r.Context(), chatId, userId, kind, header.Filename, url)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *GoChatApp) postSticker(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req StickerRequest
	if !s.decode(w, r, &req) {
		return
	}

	msg, err := s.cs.SubmitMessage(r.Context(), req.ChatId, userId, types.KindSticker, "", req.Url)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msg)
}

func (s *GoChatApp) react(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req ReactRequest
	if !s.decode(w, r, &req) {
		return
	}

	added, err := s.cs.React(r.Context(), req.MessageId, userId, req.Emoji)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, ReactResponse{Ok: true, Added: added})
}

func (s *GoChatApp) pushPublicKey(w http.ResponseWriter, _ *http.Request) {
	s.writeJson(w, http.StatusOK, PublicKeyResponse{Key: s.vapidPublicKey})
}

func (s *GoChatApp) pushSubscribe(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req PushSubscribeRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	err := s.db.UpsertPushSubscription(r.Context(), database.PushSubscription{
		UserId:   userId,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, OkResponse{Ok: true})
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Printf("health check: %v", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client, err := server.NewClient(toUser(user), conn, s.cs, s.log)
	if err != nil {
		s.log.Println("error creating client:", err)
		conn.Close()
		return
	}

	if !s.cs.Register(client) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}

// saveUpload stores the multipart file under field and writes the error
// response itself when it returns false.
func (s *GoChatApp) saveUpload(w http.ResponseWriter, r *http.Request, field string) (string, *multipart.FileHeader, bool) {
	if s.files == nil {
		errResp := NewNotFoundError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", nil, false
	}

	if r.MultipartForm == nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			s.writeUploadError(w, err)
			return "", nil, false
		}
	}

	f, header, err := r.FormFile(field)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", nil, false
	}
	defer f.Close()

	url, err := s.files.Save(header.Filename, f)
	if errors.Is(err, attachments.ErrTooLarge) {
		errResp := newApiError(http.StatusRequestEntityTooLarge)
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", nil, false
	}
	if err != nil {
		errResp := NewInternalServerError(err)
		s.log.Printf("save upload: %v", err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return "", nil, false
	}

	return url, header, true
}

func (s *GoChatApp) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		errResp := newApiError(http.StatusRequestEntityTooLarge)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	errResp := NewBadRequestError()
	s.writeJson(w, errResp.StatusCode, errResp)
}

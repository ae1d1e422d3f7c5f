package api

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/attachments"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/types"
)

// multipart bodies may carry form fields next to the file
const maxBodySize = attachments.MaxUploadSize + 1<<20

const (
	defaultUsersLimit = 50
	maxUsersLimit     = 100
)

type CreateChatRequest struct {
	Name    string `json:"name"`
	UserIds []int  `json:"userIds"`
}

type UploadResponse struct {
	FileName string `json:"fileName"`
}

func (s *GoChatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *GoChatApp) writeError(w http.ResponseWriter, errResp *ApiError) {
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Printf("request failed: %v", errResp)
	}
	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *GoChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func pathId(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(r.PathValue(name))
	return id, err == nil && id > 0
}

func (s *GoChatApp) requireMember(r *http.Request, chatId, userId int) *ApiError {
	ok, err := s.db.IsMember(r.Context(), chatId, userId)
	if err != nil {
		return NewInternalServerError(err)
	}
	if !ok {
		return NewForbiddenError().withMessage("you are not a member of this chat")
	}
	return nil
}

// listUsers searches accounts by username so clients can pick chat members.
func (s *GoChatApp) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := database.ListAccountsParams{
		Username: strings.TrimSpace(q.Get("username")),
		Limit:    defaultUsersLimit,
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxUsersLimit {
			s.writeError(w, NewBadRequestError().withMessage("limit must be between 1 and 100"))
			return
		}
		params.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			s.writeError(w, NewBadRequestError().withMessage("offset must be a non-negative number"))
			return
		}
		params.Offset = offset
	}

	dbUsers, err := s.db.ListAccounts(r.Context(), params)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	users := make([]types.Profile, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, server.ToProfile(u))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *GoChatApp) createChat(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, NewBadRequestError())
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		s.writeError(w, NewBadRequestError().withMessage("name is required"))
		return
	}

	// the creator is always a member
	memberIds := append([]int{userId}, req.UserIds...)
	slices.Sort(memberIds)
	memberIds = slices.Compact(memberIds)

	users, err := s.db.ListAccountsById(r.Context(), memberIds)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}
	if len(users) != len(memberIds) {
		s.writeError(w, NewNotFoundError().withMessage("one or more users not found"))
		return
	}

	chat, err := s.db.CreateChat(r.Context(), database.CreateChatParams{Name: req.Name, MemberIds: memberIds})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, types.Chat{Id: chat.Id, Name: chat.Name, CreatedAt: chat.CreatedAt})
}

func (s *GoChatApp) listChats(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	dbChats, err := s.db.ListChatsForUser(r.Context(), userId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	chats := make([]types.Chat, 0, len(dbChats))
	for _, c := range dbChats {
		chats = append(chats, types.Chat{Id: c.Id, Name: c.Name, CreatedAt: c.CreatedAt})
	}

	s.writeJson(w, http.StatusOK, chats)
}

func (s *GoChatApp) listParticipants(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	chatId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	if errResp := s.requireMember(r, chatId, userId); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	dbUsers, err := s.db.ListParticipants(r.Context(), chatId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	users := make([]types.Profile, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, server.ToProfile(u))
	}

	s.writeJson(w, http.StatusOK, users)
}

// withSenders converts rows and attaches the sender profiles.
func (s *GoChatApp) withSenders(r *http.Request, rows []database.Message) ([]types.Message, error) {
	senderIds := make([]int, 0, len(rows))
	for _, row := range rows {
		senderIds = append(senderIds, row.SenderId)
	}
	slices.Sort(senderIds)
	senderIds = slices.Compact(senderIds)

	senders := make(map[int]types.Profile, len(senderIds))
	if len(senderIds) > 0 {
		users, err := s.db.ListAccountsById(r.Context(), senderIds)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			senders[u.Id] = server.ToProfile(u)
		}
	}

	messages := make([]types.Message, 0, len(rows))
	for _, row := range rows {
		msg := server.ToMessage(row)
		if sender, ok := senders[row.SenderId]; ok {
			msg.Sender = &sender
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

func (s *GoChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	chatId, err := strconv.Atoi(r.URL.Query().Get("chat_id"))
	if err != nil || chatId <= 0 {
		s.writeError(w, NewBadRequestError())
		return
	}

	if errResp := s.requireMember(r, chatId, userId); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	rows, err := s.db.ListMessagesByChat(r.Context(), chatId)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	messages, err := s.withSenders(r, rows)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *GoChatApp) getMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	msgId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	row, err := s.db.GetMessageById(r.Context(), msgId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewNotFoundError().withMessage("message not found"))
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}

	if errResp := s.requireMember(r, row.ChatId, userId); errResp != nil {
		s.writeError(w, errResp)
		return
	}

	messages, err := s.withSenders(r, []database.Message{row})
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	s.writeJson(w, http.StatusOK, messages[0])
}

// createMessage accepts either a JSON send request or a multipart form with
// an optional file, stores the file and sends through the gateway.
func (s *GoChatApp) createMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req server.SendRequest
	var uploaded bool
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, NewBadRequestError())
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			s.writeError(w, bodyError(err))
			return
		}
		defer r.MultipartForm.RemoveAll()

		chatId, err := strconv.Atoi(r.FormValue("chatId"))
		if err != nil {
			s.writeError(w, NewBadRequestError().withMessage("chatId must be a number"))
			return
		}
		req = server.SendRequest{
			ChatId:      chatId,
			MessageType: r.FormValue("messageType"),
			Message:     r.FormValue("message"),
		}

		if files := r.MultipartForm.File["file"]; len(files) > 0 {
			if kind, ok := types.ParseMessageType(req.MessageType); ok && kind.IsMedia() {
				if errResp := s.requireMember(r, chatId, userId); errResp != nil {
					s.writeError(w, errResp)
					return
				}
				ref, errResp := s.saveUpload(r, req.MessageType)
				if errResp != nil {
					s.writeError(w, errResp)
					return
				}
				req.FileName = ref
				uploaded = true
			} else {
				// not stored; the content policy rejects it below
				req.FileName = files[0].Filename
			}
		}
	}

	msg, err := s.gateway.SendMessage(r.Context(), userId, req)
	if err != nil {
		if uploaded {
			s.removeUpload(req.MessageType, req.FileName)
		}
		s.writeError(w, fromError(err))
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *GoChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())
	msgId, ok := pathId(r, "id")
	if !ok {
		s.writeError(w, NewBadRequestError())
		return
	}

	deleted, err := s.gateway.DeleteMessage(r.Context(), userId, msgId)
	if err != nil {
		s.writeError(w, fromError(err))
		return
	}

	s.writeJson(w, http.StatusOK, deleted)
}

func (s *GoChatApp) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, bodyError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	ref, errResp := s.saveUpload(r, r.FormValue("messageType"))
	if errResp != nil {
		s.writeError(w, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, UploadResponse{FileName: ref})
}

func (s *GoChatApp) saveUpload(r *http.Request, messageType string) (string, *ApiError) {
	kind, ok := types.ParseMessageType(messageType)
	if !ok || !kind.IsMedia() {
		return "", NewBadRequestError().withMessage("unsupported message type for upload")
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", NewBadRequestError().withMessage("file is required")
	}
	defer file.Close()

	if header.Size > attachments.MaxUploadSize {
		return "", NewRequestTooLargeError()
	}

	ref, err := s.files.Save(kind, header.Filename, file)
	switch {
	case err == nil:
		return ref, nil
	case errors.Is(err, attachments.ErrTooLarge):
		return "", NewRequestTooLargeError()
	case errors.Is(err, attachments.ErrInvalidFileType), errors.Is(err, attachments.ErrUnsupportedKind):
		return "", NewBadRequestError().withMessage(err.Error())
	default:
		return "", NewInternalServerError(err)
	}
}

func (s *GoChatApp) removeUpload(messageType, ref string) {
	kind, ok := types.ParseMessageType(messageType)
	if !ok {
		return
	}
	if err := s.files.Remove(kind, ref); err != nil {
		s.log.Printf("remove upload %s: %v", ref, err)
	}
}

func (s *GoChatApp) download(w http.ResponseWriter, r *http.Request) {
	kind, ok := types.ParseMessageType(r.PathValue("kind"))
	if !ok || !kind.IsMedia() {
		s.writeError(w, NewNotFoundError())
		return
	}
	name := r.PathValue("name")

	f, err := s.files.Open(kind, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, attachments.ErrInvalidRef) {
			s.writeError(w, NewNotFoundError())
		} else {
			s.writeError(w, NewInternalServerError(err))
		}
		return
	}
	defer f.Close()

	if rs, ok := f.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, time.Time{}, rs)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := io.Copy(w, f); err != nil {
		s.log.Printf("download %s: %v", name, err)
	}
}

func bodyError(err error) *ApiError {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return NewRequestTooLargeError()
	}
	return NewBadRequestError()
}

func (s *GoChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}

	token := tokenFromRequest(r, true)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	if err := s.gateway.Serve(conn, token); err != nil {
		s.log.Printf("serve connection from %s: %v", r.RemoteAddr, err)
	}
}

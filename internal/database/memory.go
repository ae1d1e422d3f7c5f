package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

type membershipKey struct {
	chatId int
	userId int
}

// MemoryGoChatRepository is a process local GoChatRepository. It backs the
// server when no DSN is configured and exercises the gateway in tests.
type MemoryGoChatRepository struct {
	mu       sync.RWMutex
	clock    *monotonicClock
	users    map[int]User
	chats    map[int]Chat
	members  map[membershipKey]struct{}
	messages map[int]Message
	nextUser int
	nextChat int
	nextMsg  int
}

func NewMemoryGoChatRepository() *MemoryGoChatRepository {
	return &MemoryGoChatRepository{
		clock:    newMonotonicClock(),
		users:    make(map[int]User),
		chats:    make(map[int]Chat),
		members:  make(map[membershipKey]struct{}),
		messages: make(map[int]Message),
	}
}

func (m *MemoryGoChatRepository) Ping(context.Context) error { return nil }

func (m *MemoryGoChatRepository) Close() error { return nil }

func (m *MemoryGoChatRepository) CreateAccount(_ context.Context, params CreateAccountParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == params.Username {
			return User{}, fmt.Errorf("username %q already taken", params.Username)
		}
	}

	m.nextUser++
	now := time.Now().UTC()
	u := User{
		Id:           m.nextUser,
		Username:     params.Username,
		EmailAddress: params.EmailAddress,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.Id] = u

	return u, nil
}

func (m *MemoryGoChatRepository) GetAccountById(_ context.Context, id int) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, notFound(sql.ErrNoRows)
	}
	return u, nil
}

func (m *MemoryGoChatRepository) GetAccountByUsername(_ context.Context, username string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, notFound(sql.ErrNoRows)
}

func (m *MemoryGoChatRepository) ListAccountsById(_ context.Context, ids []int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b User) int { return a.Id - b.Id })

	return users, nil
}

func (m *MemoryGoChatRepository) ListAccounts(_ context.Context, params ListAccountsParams) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(params.Username)
	users := make([]User, 0)
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.Username), needle) {
			users = append(users, u)
		}
	}
	slices.SortFunc(users, func(a, b User) int { return a.Id - b.Id })

	start := min(params.Offset, len(users))
	end := len(users)
	if params.Limit > 0 {
		end = min(start+params.Limit, end)
	}

	return users[start:end], nil
}

func (m *MemoryGoChatRepository) IsMember(_ context.Context, chatId, userId int) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.members[membershipKey{chatId, userId}]
	return ok, nil
}

func (m *MemoryGoChatRepository) ListChatIdsForUser(_ context.Context, userId int) ([]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int
	for key := range m.members {
		if key.userId == userId {
			ids = append(ids, key.chatId)
		}
	}
	slices.Sort(ids)

	return ids, nil
}

// AddMember inserts a membership row directly.
func (m *MemoryGoChatRepository) AddMember(chatId, userId int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[membershipKey{chatId, userId}] = struct{}{}
}

// RemoveMember deletes a membership row directly.
func (m *MemoryGoChatRepository) RemoveMember(chatId, userId int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, membershipKey{chatId, userId})
}

func (m *MemoryGoChatRepository) AppendMessage(_ context.Context, msg Message) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[msg.ChatId]; !ok {
		return Message{}, fmt.Errorf("chat %d does not exist", msg.ChatId)
	}

	m.nextMsg++
	msg.Id = m.nextMsg
	msg.CreatedAt = m.clock.Next()
	msg.DeletedAt = sql.NullTime{}
	m.messages[msg.Id] = msg

	return msg, nil
}

func (m *MemoryGoChatRepository) ListMessagesByChat(_ context.Context, chatId int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]Message, 0)
	for _, msg := range m.messages {
		if msg.ChatId == chatId && !msg.DeletedAt.Valid {
			messages = append(messages, msg)
		}
	}
	slices.SortFunc(messages, func(a, b Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.Id - b.Id
	})

	return messages, nil
}

func (m *MemoryGoChatRepository) GetMessageById(_ context.Context, id int) (Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[id]
	if !ok || msg.DeletedAt.Valid {
		return Message{}, notFound(sql.ErrNoRows)
	}
	return msg, nil
}

func (m *MemoryGoChatRepository) RemoveMessage(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg, ok := m.messages[id]
	if !ok || msg.DeletedAt.Valid {
		return notFound(sql.ErrNoRows)
	}
	msg.DeletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	m.messages[id] = msg

	return nil
}

func (m *MemoryGoChatRepository) CreateChat(_ context.Context, params CreateChatParams) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextChat++
	chat := Chat{
		Id:        m.nextChat,
		Name:      params.Name,
		CreatedAt: time.Now().UTC(),
	}
	m.chats[chat.Id] = chat

	for _, userId := range params.MemberIds {
		m.members[membershipKey{chat.Id, userId}] = struct{}{}
	}

	return chat, nil
}

func (m *MemoryGoChatRepository) GetChatById(_ context.Context, id int) (Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chat, ok := m.chats[id]
	if !ok {
		return Chat{}, notFound(sql.ErrNoRows)
	}
	return chat, nil
}

func (m *MemoryGoChatRepository) ListChatsForUser(_ context.Context, userId int) ([]Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chats := make([]Chat, 0)
	for key := range m.members {
		if key.userId == userId {
			if chat, ok := m.chats[key.chatId]; ok {
				chats = append(chats, chat)
			}
		}
	}
	slices.SortFunc(chats, func(a, b Chat) int { return a.Id - b.Id })

	return chats, nil
}

func (m *MemoryGoChatRepository) ListParticipants(_ context.Context, chatId int) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]User, 0)
	for key := range m.members {
		if key.chatId == chatId {
			if u, ok := m.users[key.userId]; ok {
				users = append(users, u)
			}
		}
	}
	slices.SortFunc(users, func(a, b User) int { return a.Id - b.Id })

	return users, nil
}

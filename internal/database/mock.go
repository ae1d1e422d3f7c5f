package database

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockGoChatRepository struct {
	mock.Mock
}

func (m *MockGoChatRepository) Ping(ctx context.Context) error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoChatRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	args := m.Called(id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockGoChatRepository) ListAccountsById(ctx context.Context, ids []int) ([]User, error) {
	args := m.Called(ids)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGoChatRepository) ListAccounts(ctx context.Context, params ListAccountsParams) ([]User, error) {
	args := m.Called(params)
	return args.Get(0).([]User), args.Error(1)
}
func (m *MockGoChatRepository) IsMember(ctx context.Context, chatId, userId int) (bool, error) {
	args := m.Called(chatId, userId)
	return args.Bool(0), args.Error(1)
}
func (m *MockGoChatRepository) ListChatIdsForUser(ctx context.Context, userId int) ([]int, error) {
	args := m.Called(userId)
	return args.Get(0).([]int), args.Error(1)
}
func (m *MockGoChatRepository) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	args := m.Called(msg)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGoChatRepository) ListMessagesByChat(ctx context.Context, chatId int) ([]Message, error) {
	args := m.Called(chatId)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockGoChatRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	args := m.Called(id)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockGoChatRepository) RemoveMessage(ctx context.Context, id int) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockGoChatRepository) CreateChat(ctx context.Context, params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockGoChatRepository) GetChatById(ctx context.Context, id int) (Chat, error) {
	args := m.Called(id)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockGoChatRepository) ListChatsForUser(ctx context.Context, userId int) ([]Chat, error) {
	args := m.Called(userId)
	return args.Get(0).([]Chat), args.Error(1)
}
func (m *MockGoChatRepository) ListParticipants(ctx context.Context, chatId int) ([]User, error) {
	args := m.Called(chatId)
	return args.Get(0).([]User), args.Error(1)
}

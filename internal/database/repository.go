package database

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNotFound is returned when a requested row does not exist. Postgres lookups
// wrap sql.ErrNoRows with it.
var ErrNotFound = errors.New("not found")

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

type UserStore interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (User, error)
	GetAccountById(ctx context.Context, id int) (User, error)
	GetAccountByUsername(ctx context.Context, username string) (User, error)
	ListAccountsById(ctx context.Context, ids []int) ([]User, error)
	ListAccounts(ctx context.Context, params ListAccountsParams) ([]User, error)
}

type MembershipStore interface {
	IsMember(ctx context.Context, chatId, userId int) (bool, error)
	ListChatIdsForUser(ctx context.Context, userId int) ([]int, error)
}

// MessageStore callers must check membership before listing a chat.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg Message) (Message, error)
	ListMessagesByChat(ctx context.Context, chatId int) ([]Message, error)
	GetMessageById(ctx context.Context, id int) (Message, error)
	RemoveMessage(ctx context.Context, id int) error
}

type ChatStore interface {
	CreateChat(ctx context.Context, params CreateChatParams) (Chat, error)
	GetChatById(ctx context.Context, id int) (Chat, error)
	ListChatsForUser(ctx context.Context, userId int) ([]Chat, error)
	ListParticipants(ctx context.Context, chatId int) ([]User, error)
}

type GoChatRepository interface {
	UserStore
	MembershipStore
	MessageStore
	ChatStore
	Ping(ctx context.Context) error
	Close() error
}

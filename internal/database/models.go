package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	FirstName    string
	LastName     string
	ProfileImg   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Chat struct {
	Id        int
	Name      string
	CreatedAt time.Time
}

type Message struct {
	Id             int
	ChatId         int
	SenderId       int
	MessageType    string
	Content        string
	AttachmentKind sql.NullString
	AttachmentRef  sql.NullString
	CreatedAt      time.Time
	DeletedAt      sql.NullTime
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
	FirstName    string
	LastName     string
}

type CreateChatParams struct {
	Name      string
	MemberIds []int
}

// ListAccountsParams filters accounts by a case insensitive username
// substring. Results are ordered by id.
type ListAccountsParams struct {
	Username string
	Limit    int
	Offset   int
}

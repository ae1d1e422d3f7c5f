package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	accountColumns = "id, username, email, password_hash, first_name, last_name, profile_img, created_at, updated_at"
	messageColumns = "id, chat_id, sender_id, message_type, content, attachment_kind, attachment_ref, created_at, deleted_at"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.ProfileImg,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func scanMessage(row scanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.SenderId,
		&msg.MessageType,
		&msg.Content,
		&msg.AttachmentKind,
		&msg.AttachmentRef,
		&msg.CreatedAt,
		&msg.DeletedAt,
	)

	return msg, err
}

func (db *PgGoChatRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO accounts (username, email, password_hash, first_name, last_name, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING "+accountColumns,
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		params.FirstName,
		params.LastName,
		now,
	)

	return scanAccount(row)
}

func (db *PgGoChatRepository) GetAccountById(ctx context.Context, id int) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		id,
	)

	u, err := scanAccount(row)
	return u, notFound(err)
}

func (db *PgGoChatRepository) GetAccountByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username = $1 LIMIT 1",
		username,
	)

	u, err := scanAccount(row)
	return u, notFound(err)
}

func (db *PgGoChatRepository) ListAccountsById(ctx context.Context, ids []int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = ANY($1) ORDER BY id",
		pq.Array(ids),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0, len(ids))
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgGoChatRepository) ListAccounts(ctx context.Context, params ListAccountsParams) ([]User, error) {
	limit := sql.NullInt64{Int64: int64(params.Limit), Valid: params.Limit > 0}
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE username ILIKE '%' || $1 || '%' "+
			"ORDER BY id LIMIT $2 OFFSET $3",
		escapeLike(params.Username),
		limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func (db *PgGoChatRepository) IsMember(ctx context.Context, chatId, userId int) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1 AND account_id = $2)",
		chatId,
		userId,
	).Scan(&exists)

	return exists, err
}

func (db *PgGoChatRepository) ListChatIdsForUser(ctx context.Context, userId int) ([]int, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT chat_id FROM chat_members WHERE account_id = $1 ORDER BY chat_id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chat id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgGoChatRepository) AppendMessage(ctx context.Context, msg Message) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO messages (chat_id, sender_id, message_type, content, attachment_kind, attachment_ref, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+messageColumns,
		msg.ChatId,
		msg.SenderId,
		msg.MessageType,
		msg.Content,
		msg.AttachmentKind,
		msg.AttachmentRef,
		db.clock.Next(),
	)

	return scanMessage(row)
}

func (db *PgGoChatRepository) ListMessagesByChat(ctx context.Context, chatId int) ([]Message, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+messageColumns+" FROM messages "+
			"WHERE chat_id = $1 AND deleted_at IS NULL ORDER BY created_at ASC, id ASC",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgGoChatRepository) GetMessageById(ctx context.Context, id int) (Message, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+messageColumns+" FROM messages WHERE id = $1 AND deleted_at IS NULL LIMIT 1",
		id,
	)

	msg, err := scanMessage(row)
	return msg, notFound(err)
}

func (db *PgGoChatRepository) RemoveMessage(ctx context.Context, id int) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE messages SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL",
		id,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound(sql.ErrNoRows)
	}

	return nil
}

func (db *PgGoChatRepository) CreateChat(ctx context.Context, params CreateChatParams) (Chat, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat Chat
	err = tx.QueryRowContext(ctx,
		"INSERT INTO chats (name, created_at) VALUES ($1, $2) RETURNING id, name, created_at",
		params.Name,
		time.Now().UTC(),
	).Scan(&chat.Id, &chat.Name, &chat.CreatedAt)
	if err != nil {
		return Chat{}, err
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO chat_members (chat_id, account_id) SELECT $1, unnest($2::int[]) ON CONFLICT DO NOTHING",
		chat.Id,
		pq.Array(params.MemberIds),
	)
	if err != nil {
		return Chat{}, err
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgGoChatRepository) GetChatById(ctx context.Context, id int) (Chat, error) {
	var chat Chat
	err := db.conn.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM chats WHERE id = $1 LIMIT 1",
		id,
	).Scan(&chat.Id, &chat.Name, &chat.CreatedAt)

	return chat, notFound(err)
}

func (db *PgGoChatRepository) ListChatsForUser(ctx context.Context, userId int) ([]Chat, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT c.id, c.name, c.created_at FROM chat_members m "+
			"JOIN chats c ON c.id = m.chat_id WHERE m.account_id = $1 ORDER BY c.id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chats := make([]Chat, 0)
	for rows.Next() {
		var chat Chat
		if err := rows.Scan(&chat.Id, &chat.Name, &chat.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}

	return chats, rows.Err()
}

func (db *PgGoChatRepository) ListParticipants(ctx context.Context, chatId int) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT a.id, a.username, a.email, a.password_hash, a.first_name, a.last_name, a.profile_img, a.created_at, a.updated_at "+
			"FROM chat_members m JOIN accounts a ON a.id = m.account_id WHERE m.chat_id = $1 ORDER BY a.id",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

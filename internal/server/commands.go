package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/types"
)

var contentPolicy = bluemonday.UGCPolicy()

// dispatch handles one command. It returns false when the connection should
// be closed.
func (g *Gateway) dispatch(c *Client, msg *ClientMessage) bool {
	if c.currentState() != stateAuthenticated {
		return false
	}

	switch msg.Event {
	case EventSendMessage:
		var req SendRequest
		if !decodeData(c, msg, &req) {
			return true
		}
		sent, err := g.SendMessage(c.ctx, c.user.Id, req)
		if err != nil {
			c.queueMessage(NewErrorMessage(g.clientMessage("send message", err)))
			return true
		}
		c.queueMessage(NewMessageSent(sent))
	case EventDeleteMessage:
		var req DeleteRequest
		if !decodeData(c, msg, &req) {
			return true
		}
		deleted, err := g.DeleteMessage(c.ctx, c.user.Id, req.MessageId)
		if err != nil {
			c.queueMessage(NewDeleteFailed(g.clientMessage("delete message", err)))
			return true
		}
		c.queueMessage(NewDeleteResult(deleted))
	case EventJoinChat:
		var req ChatRef
		if !decodeData(c, msg, &req) {
			return true
		}
		g.joinChat(c, req.ChatId)
	case EventLeaveChat:
		var req ChatRef
		if !decodeData(c, msg, &req) {
			return true
		}
		g.leaveChat(c, req.ChatId)
	case EventTypingStart, EventTypingStop:
		var req ChatRef
		if !decodeData(c, msg, &req) {
			return true
		}
		g.broadcastRoom(req.ChatId, NewTyping(c.user, req.ChatId, msg.Event == EventTypingStart), c)
	case EventLogout:
		g.log.Printf("user %q logged out of %q", c.user.Username, c.id)
		return false
	default:
		c.queueMessage(NewErrorMessage(fmt.Sprintf("unknown event %q", msg.Event)))
	}

	return true
}

func decodeData(c *Client, msg *ClientMessage, v any) bool {
	if len(msg.Data) == 0 {
		c.queueMessage(ErrInvalidMessage())
		return false
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		c.log.Printf("decode %s: %v", msg.Event, err)
		c.queueMessage(ErrInvalidMessage())
		return false
	}
	return true
}

// clientMessage logs err and returns the text that may be shown to the client.
func (g *Gateway) clientMessage(op string, err error) string {
	ce := asChatError(err)
	if ce.Kind == KindInternal {
		g.log.Printf("%s: %v", op, err)
	}
	return ce.Message
}

func (g *Gateway) requireMember(ctx context.Context, chatId, userId int) error {
	ok, err := g.db.IsMember(ctx, chatId, userId)
	if err != nil {
		return NewInternalError(fmt.Errorf("membership lookup: %w", err))
	}
	if !ok {
		return NewAuthorizationError("you are not a member of this chat")
	}
	return nil
}

// validateContent applies the message content policy and returns the
// normalized type and attachment. Text counts as present only if something is
// left after stripping unsafe markup; the stored text is never rewritten.
func validateContent(req SendRequest) (types.MessageType, *types.Attachment, error) {
	mt, ok := types.ParseMessageType(req.MessageType)
	if !ok {
		return "", nil, NewValidationError(fmt.Sprintf("invalid message type %q", req.MessageType))
	}

	hasText := strings.TrimSpace(contentPolicy.Sanitize(req.Message)) != ""
	ref := strings.TrimSpace(req.FileName)
	hasFile := ref != ""

	switch {
	case !hasText && !hasFile:
		return "", nil, NewValidationError("message must contain either text content or a file")
	case !mt.IsMedia() && hasFile:
		return "", nil, NewValidationError("text message type cannot have files")
	case mt.IsMedia() && !hasFile:
		return "", nil, NewValidationError(fmt.Sprintf("%s message type requires a file", mt))
	}

	if !hasFile {
		return mt, nil, nil
	}
	if strings.ContainsAny(ref, `/\`) || strings.HasPrefix(ref, ".") {
		return "", nil, NewValidationError("invalid file name")
	}
	return mt, &types.Attachment{Kind: mt, Ref: ref}, nil
}

// SendMessage persists a message from senderId and delivers it to every
// connection joined to the chat. Nothing is stored or broadcast on error.
func (g *Gateway) SendMessage(ctx context.Context, senderId int, req SendRequest) (types.Message, error) {
	if err := g.requireMember(ctx, req.ChatId, senderId); err != nil {
		return types.Message{}, err
	}

	mt, attachment, err := validateContent(req)
	if err != nil {
		return types.Message{}, err
	}

	sender, err := g.db.GetAccountById(ctx, senderId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return types.Message{}, NewNotFoundError("sender not found")
		}
		return types.Message{}, NewInternalError(err)
	}

	row := database.Message{
		ChatId:      req.ChatId,
		SenderId:    senderId,
		MessageType: string(mt),
		Content:     req.Message,
	}
	if attachment != nil {
		row.AttachmentKind.String, row.AttachmentKind.Valid = string(attachment.Kind), true
		row.AttachmentRef.String, row.AttachmentRef.Valid = attachment.Ref, true
	}

	saved, err := g.db.AppendMessage(ctx, row)
	if err != nil {
		return types.Message{}, NewInternalError(fmt.Errorf("append message: %w", err))
	}
	g.stats.Incr(stats.MetricMessagesSent)

	msg := ToMessage(saved)
	profile := ToProfile(sender)
	msg.Sender = &profile

	g.broadcastRoom(msg.ChatId, NewNewMessage(msg), nil)

	return msg, nil
}

// DeleteMessage removes a message and notifies the chat. Only the sender may
// delete, and only while still a member of the chat.
func (g *Gateway) DeleteMessage(ctx context.Context, userId, messageId int) (DeletedMessage, error) {
	row, err := g.db.GetMessageById(ctx, messageId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return DeletedMessage{}, NewNotFoundError("message not found")
		}
		return DeletedMessage{}, NewInternalError(err)
	}

	if err := g.requireMember(ctx, row.ChatId, userId); err != nil {
		return DeletedMessage{}, err
	}
	if row.SenderId != userId {
		return DeletedMessage{}, NewAuthorizationError("you can only delete your own messages")
	}

	if err := g.db.RemoveMessage(ctx, row.Id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return DeletedMessage{}, NewNotFoundError("message not found")
		}
		return DeletedMessage{}, NewInternalError(fmt.Errorf("remove message: %w", err))
	}
	g.stats.Incr(stats.MetricMessagesDeleted)

	if row.AttachmentRef.Valid && g.files != nil {
		kind := types.MessageType(row.AttachmentKind.String)
		if err := g.files.Remove(kind, row.AttachmentRef.String); err != nil {
			g.log.Printf("remove attachment %s/%s: %v", kind, row.AttachmentRef.String, err)
		}
	}

	deleted := DeletedMessage{Id: row.Id, ChatId: row.ChatId, SenderId: row.SenderId}
	g.broadcastRoom(row.ChatId, NewMessageDeleted(deleted, userId), nil)

	return deleted, nil
}

func (g *Gateway) joinChat(c *Client, chatId int) {
	if err := g.requireMember(c.ctx, chatId, c.user.Id); err != nil {
		c.queueMessage(NewErrorMessage(g.clientMessage("join chat", err)))
		return
	}

	c.rooms.Join(chatId)
	c.queueMessage(NewChatAck(EventJoinedChat, chatId))
	g.broadcastRoom(chatId, NewRoomNotice(EventUserJoined, c.user, chatId), c)
	g.log.Printf("user %q joined %s", c.user.Username, RoomName(chatId))
}

func (g *Gateway) leaveChat(c *Client, chatId int) {
	c.rooms.Leave(chatId)
	c.queueMessage(NewChatAck(EventLeftChat, chatId))
	g.broadcastRoom(chatId, NewRoomNotice(EventUserLeft, c.user, chatId), c)
	g.log.Printf("user %q left %s", c.user.Username, RoomName(chatId))
}

// ToMessage converts a stored row to its wire form without the sender profile.
func ToMessage(row database.Message) types.Message {
	msg := types.Message{
		Id:          row.Id,
		ChatId:      row.ChatId,
		SenderId:    row.SenderId,
		MessageType: types.MessageType(row.MessageType),
		Message:     row.Content,
		CreatedAt:   row.CreatedAt,
	}
	if row.AttachmentRef.Valid {
		msg.Attachment = &types.Attachment{
			Kind: types.MessageType(row.AttachmentKind.String),
			Ref:  row.AttachmentRef.String,
		}
	}

	return msg
}

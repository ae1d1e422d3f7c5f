package server

import (
	"encoding/json"

	"github.com/npezzotti/go-messenger/internal/types"
)

const (
	EventSendMessage   = "send_message"
	EventDeleteMessage = "delete_message"
	EventJoinChat      = "join_chat"
	EventLeaveChat     = "leave_chat"
	EventTypingStart   = "typing_start"
	EventTypingStop    = "typing_stop"
	EventLogout        = "logout"

	EventMessageSent         = "message_sent"
	EventNewMessage          = "new_message"
	EventMessageDeleteResult = "message_delete_result"
	EventMessageDeleted      = "message_deleted"
	EventJoinedChat          = "joined_chat"
	EventUserJoined          = "user_joined"
	EventLeftChat            = "left_chat"
	EventUserLeft            = "user_left"
	EventUserTyping          = "user_typing"
	EventOnlineUsers         = "online_users"
	EventError               = "error"
)

// ClientMessage is one command frame read from a connection.
type ClientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is one frame written to a connection. The same value may be
// queued on many connections and must not be mutated after it is queued.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

type SendRequest struct {
	MessageType string `json:"messageType"`
	Message     string `json:"message"`
	ChatId      int    `json:"chatId"`
	FileName    string `json:"fileName,omitempty"`
}

type DeleteRequest struct {
	MessageId int `json:"messageId"`
}

type ChatRef struct {
	ChatId int `json:"chatId"`
}

type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type MessageResult struct {
	Result
	Data *types.Message `json:"data,omitempty"`
}

type DeletedMessage struct {
	Id       int `json:"id"`
	ChatId   int `json:"chatId"`
	SenderId int `json:"senderId"`
}

type DeleteResult struct {
	Result
	DeletedMessage *DeletedMessage `json:"deletedMessage,omitempty"`
}

type MessageDeleted struct {
	Success   bool `json:"success"`
	MessageId int  `json:"messageId"`
	ChatId    int  `json:"chatId"`
	DeletedBy int  `json:"deletedBy"`
}

type RoomNotice struct {
	UserId   int    `json:"userId"`
	Username string `json:"username"`
	ChatId   int    `json:"chatId"`
}

type Typing struct {
	RoomNotice
	Typing bool `json:"typing"`
}

type OnlineUsers struct {
	UserIds []int `json:"userIds"`
}

func NewMessageSent(msg types.Message) *ServerMessage {
	return &ServerMessage{
		Event: EventMessageSent,
		Data: MessageResult{
			Result: Result{Success: true, Message: "message successfully sent"},
			Data:   &msg,
		},
	}
}

func NewNewMessage(msg types.Message) *ServerMessage {
	return &ServerMessage{
		Event: EventNewMessage,
		Data: MessageResult{
			Result: Result{Success: true},
			Data:   &msg,
		},
	}
}

func NewDeleteResult(deleted DeletedMessage) *ServerMessage {
	return &ServerMessage{
		Event: EventMessageDeleteResult,
		Data: DeleteResult{
			Result:         Result{Success: true, Message: "message deleted successfully"},
			DeletedMessage: &deleted,
		},
	}
}

func NewDeleteFailed(message string) *ServerMessage {
	return &ServerMessage{
		Event: EventMessageDeleteResult,
		Data:  DeleteResult{Result: Result{Success: false, Message: message}},
	}
}

func NewMessageDeleted(deleted DeletedMessage, deletedBy int) *ServerMessage {
	return &ServerMessage{
		Event: EventMessageDeleted,
		Data: MessageDeleted{
			Success:   true,
			MessageId: deleted.Id,
			ChatId:    deleted.ChatId,
			DeletedBy: deletedBy,
		},
	}
}

func NewRoomNotice(event string, user types.User, chatId int) *ServerMessage {
	return &ServerMessage{
		Event: event,
		Data:  RoomNotice{UserId: user.Id, Username: user.Username, ChatId: chatId},
	}
}

func NewChatAck(event string, chatId int) *ServerMessage {
	return &ServerMessage{
		Event: event,
		Data:  ChatRef{ChatId: chatId},
	}
}

func NewTyping(user types.User, chatId int, typing bool) *ServerMessage {
	return &ServerMessage{
		Event: EventUserTyping,
		Data: Typing{
			RoomNotice: RoomNotice{UserId: user.Id, Username: user.Username, ChatId: chatId},
			Typing:     typing,
		},
	}
}

func NewOnlineUsers(userIds []int) *ServerMessage {
	if userIds == nil {
		userIds = []int{}
	}
	return &ServerMessage{
		Event: EventOnlineUsers,
		Data:  OnlineUsers{UserIds: userIds},
	}
}

func NewErrorMessage(message string) *ServerMessage {
	return &ServerMessage{
		Event: EventError,
		Data:  Result{Success: false, Message: message},
	}
}

func ErrInvalidMessage() *ServerMessage {
	return NewErrorMessage("invalid message format")
}

func serializeMessage(msg *ServerMessage) ([]byte, error) {
	return json.Marshal(msg)
}

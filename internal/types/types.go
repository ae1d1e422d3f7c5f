package types

import (
	"time"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
)

// ParseMessageType normalizes a client supplied message type. Older clients
// send "img" for images.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(s) {
	case MessageTypeText, MessageTypeAudio, MessageTypeVideo, MessageTypeImage, MessageTypeDocument:
		return MessageType(s), true
	case "img":
		return MessageTypeImage, true
	}

	return "", false
}

// IsMedia reports whether messages of this type carry an attachment.
func (mt MessageType) IsMedia() bool {
	return mt != MessageTypeText
}

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email,omitempty"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	ProfileImg   string    `json:"profileImg,omitempty"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt,omitempty"`
}

// Profile is the part of a User other chat members may see.
type Profile struct {
	Id         int    `json:"id"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	ProfileImg string `json:"profileImg,omitempty"`
}

type Chat struct {
	Id        int       `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Attachment references a binary stored by the upload endpoint. Kind always
// matches the type of the message carrying it.
type Attachment struct {
	Kind MessageType `json:"kind"`
	Ref  string      `json:"ref"`
}

type Message struct {
	Id          int         `json:"id"`
	ChatId      int         `json:"chatId"`
	SenderId    int         `json:"senderId"`
	MessageType MessageType `json:"messageType"`
	Message     string      `json:"message"`
	Attachment  *Attachment `json:"attachment,omitempty"`
	Sender      *Profile    `json:"sender,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

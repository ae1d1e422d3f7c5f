package server

import (
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeMessage(t *testing.T) {
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tcs := []struct {
		name string
		msg  *ServerMessage
		want string
	}{
		{
			name: "message sent",
			msg: NewMessageSent(types.Message{
				Id:          7,
				ChatId:      2,
				SenderId:    1,
				MessageType: types.MessageTypeText,
				Message:     "hi",
				CreatedAt:   created,
			}),
			want: `{"event":"message_sent","data":{"success":true,"message":"message successfully sent",` +
				`"data":{"id":7,"chatId":2,"senderId":1,"messageType":"text","message":"hi","createdAt":"2024-05-01T12:00:00Z"}}}`,
		},
		{
			name: "message deleted",
			msg:  NewMessageDeleted(DeletedMessage{Id: 7, ChatId: 2, SenderId: 1}, 1),
			want: `{"event":"message_deleted","data":{"success":true,"messageId":7,"chatId":2,"deletedBy":1}}`,
		},
		{
			name: "delete failed",
			msg:  NewDeleteFailed("message not found"),
			want: `{"event":"message_delete_result","data":{"success":false,"message":"message not found"}}`,
		},
		{
			name: "typing",
			msg:  NewTyping(types.User{Id: 1, Username: "alice"}, 2, true),
			want: `{"event":"user_typing","data":{"userId":1,"username":"alice","chatId":2,"typing":true}}`,
		},
		{
			name: "empty online users",
			msg:  NewOnlineUsers(nil),
			want: `{"event":"online_users","data":{"userIds":[]}}`,
		},
		{
			name: "error",
			msg:  NewErrorMessage("you are not a member of this chat"),
			want: `{"event":"error","data":{"success":false,"message":"you are not a member of this chat"}}`,
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			b, err := serializeMessage(tc.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))
		})
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWs(t *testing.T, srv *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) wsFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var fr wsFrame
		require.NoError(t, conn.ReadJSON(&fr))
		if fr.Event == event {
			return fr
		}
	}
}

func TestServeWs_RoundTrip(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.ta.app.srv.Handler)
	defer srv.Close()

	alice := dialWs(t, srv, "?token="+f.ta.token(t, f.alice.Id), nil)
	readUntil(t, alice, server.EventOnlineUsers)

	bob := dialWs(t, srv, "", http.Header{"Authorization": {"Bearer " + f.ta.token(t, f.bob.Id)}})
	online := readUntil(t, bob, server.EventOnlineUsers)
	assert.JSONEq(t, `{"userIds":[`+strconv.Itoa(f.alice.Id)+`,`+strconv.Itoa(f.bob.Id)+`]}`, string(online.Data))

	require.NoError(t, alice.WriteJSON(map[string]any{
		"event": server.EventSendMessage,
		"data":  map[string]any{"messageType": "text", "message": "over the wire", "chatId": f.chat.Id},
	}))

	got := readUntil(t, bob, server.EventNewMessage)
	var res server.MessageResult
	require.NoError(t, json.Unmarshal(got.Data, &res))
	require.NotNil(t, res.Data)
	assert.Equal(t, "over the wire", res.Data.Message)
	assert.Equal(t, f.alice.Id, res.Data.SenderId)

	readUntil(t, alice, server.EventMessageSent)

	// HTTP deletes fan out to sockets too.
	rr := f.ta.do(t, http.MethodDelete, "/api/messages/"+strconv.Itoa(res.Data.Id), nil, f.alice.Id)
	require.Equal(t, http.StatusOK, rr.Code)

	deleted := readUntil(t, bob, server.EventMessageDeleted)
	var md server.MessageDeleted
	require.NoError(t, json.Unmarshal(deleted.Data, &md))
	assert.Equal(t, res.Data.Id, md.MessageId)
	assert.Equal(t, f.alice.Id, md.DeletedBy)

	require.NoError(t, bob.Close())
	online = readUntil(t, alice, server.EventOnlineUsers)
	assert.JSONEq(t, `{"userIds":[`+strconv.Itoa(f.alice.Id)+`]}`, string(online.Data))
}

func TestServeWs_RejectsBadToken(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.ta.app.srv.Handler)
	defer srv.Close()

	conn := dialWs(t, srv, "?token=garbage", nil)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Equal(t, 0, f.ta.gateway.Presence().Len())
}

func TestServeWs_RejectsOrigin(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.ta.app.srv.Handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + f.ta.token(t, f.alice.Id)
	_, resp, err := websocket.DefaultDialer.DialContext(context.Background(), url, http.Header{"Origin": {"http://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

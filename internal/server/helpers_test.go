package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-messenger/internal/auth"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/stretchr/testify/require"
)

const eventTimeout = 2 * time.Second

// fakeConn is an in-memory Conn. Frames pushed with deliver are returned by
// ReadMessage; text frames written by the server are captured on out.
type fakeConn struct {
	in        chan []byte
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 1024),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	default:
	}

	select {
	case b := <-f.in:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-f.closed:
		return websocket.ErrCloseSent
	default:
	}

	if messageType == websocket.TextMessage {
		f.out <- data
	}
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}
func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) deliver(t *testing.T, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(ClientMessage{Event: event, Data: raw})
	require.NoError(t, err)
	f.in <- frame
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// expect reads frames until one with event arrives, skipping the others.
func (f *fakeConn) expect(t *testing.T, event string) frame {
	t.Helper()
	deadline := time.After(eventTimeout)
	for {
		select {
		case raw := <-f.out:
			var fr frame
			require.NoError(t, json.Unmarshal(raw, &fr))
			if fr.Event == event {
				return fr
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", event)
		}
	}
}

// expectNone fails if a frame with event arrives within d.
func (f *fakeConn) expectNone(t *testing.T, event string, d time.Duration) {
	t.Helper()
	deadline := time.After(d)
	for {
		select {
		case raw := <-f.out:
			var fr frame
			require.NoError(t, json.Unmarshal(raw, &fr))
			if fr.Event == event {
				t.Fatalf("unexpected %q: %s", event, fr.Data)
			}
		case <-deadline:
			return
		}
	}
}

func decode[T any](t *testing.T, fr frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(fr.Data, &v))
	return v
}

type testEnv struct {
	gw       *Gateway
	db       *database.MemoryGoChatRepository
	verifier *auth.Verifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	su := stats.NewStatsUpdater(http.NewServeMux())
	su.Run()

	db := database.NewMemoryGoChatRepository()
	verifier := auth.NewVerifier([]byte("test-signing-key"), "go-messenger")
	gw := NewGateway(testutil.TestLogger(t), db, verifier, nil, su, 64)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		gw.Shutdown(ctx)
	})

	return &testEnv{gw: gw, db: db, verifier: verifier}
}

func (e *testEnv) createUser(t *testing.T, username string) database.User {
	t.Helper()
	u, err := e.db.CreateAccount(context.Background(), database.CreateAccountParams{
		Username:     username,
		EmailAddress: username + "@example.com",
	})
	require.NoError(t, err)
	return u
}

func (e *testEnv) createChat(t *testing.T, name string, members ...int) database.Chat {
	t.Helper()
	chat, err := e.db.CreateChat(context.Background(), database.CreateChatParams{Name: name, MemberIds: members})
	require.NoError(t, err)
	return chat
}

func (e *testEnv) token(t *testing.T, userId int) string {
	t.Helper()
	token, err := e.verifier.Issue(userId, time.Hour)
	require.NoError(t, err)
	return token
}

// connect authenticates a new connection for userId and waits for the
// initial online_users snapshot.
func (e *testEnv) connect(t *testing.T, userId int) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	require.NoError(t, e.gw.Serve(conn, e.token(t, userId)))
	conn.expect(t, EventOnlineUsers)
	return conn
}

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/attachments"
	"github.com/npezzotti/go-messenger/internal/auth"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/server"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/stretchr/testify/require"
)

type testApp struct {
	app      *GoChatApp
	gateway  *server.Gateway
	verifier *auth.Verifier
}

func newTestApp(t *testing.T, db database.GoChatRepository, files attachments.Store) *testApp {
	t.Helper()

	logger := testutil.TestLogger(t)
	mux := http.NewServeMux()
	su := stats.NewStatsUpdater(mux)
	su.Run()

	verifier := auth.NewVerifier([]byte("test-signing-key"), "go-messenger")
	gw := server.NewGateway(logger, db, verifier, files, su, 16)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		gw.Shutdown(ctx)
	})

	cfg := &config.Config{
		ServerAddr:     "localhost:0",
		AllowedOrigins: []string{"http://localhost:3000"},
		TokenTTL:       time.Hour,
	}
	app := NewGoChatApp(mux, logger, gw, db, verifier, files, cfg)

	return &testApp{app: app, gateway: gw, verifier: verifier}
}

func (ta *testApp) token(t *testing.T, userId int) string {
	t.Helper()
	token, err := ta.verifier.Issue(userId, time.Hour)
	require.NoError(t, err)
	return token
}

// do sends req through the full handler chain, authenticated as userId when
// it is positive.
func (ta *testApp) do(t *testing.T, method, target string, body io.Reader, userId int) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userId > 0 {
		req.Header.Set("Authorization", "Bearer "+ta.token(t, userId))
	}

	rr := httptest.NewRecorder()
	ta.app.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) doRequest(t *testing.T, req *http.Request, userId int) *httptest.ResponseRecorder {
	t.Helper()
	if userId > 0 {
		req.Header.Set("Authorization", "Bearer "+ta.token(t, userId))
	}

	rr := httptest.NewRecorder()
	ta.app.srv.Handler.ServeHTTP(rr, req)
	return rr
}

// findCookie returns the named cookie set on the response, or nil.
func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

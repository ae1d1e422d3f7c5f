package api

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/npezzotti/go-messenger/internal/auth"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler_PanicRecovery(t *testing.T) {
	buf := &bytes.Buffer{}
	app := &GoChatApp{
		log: testutil.TestLogger(t),
	}

	app.log.SetOutput(buf)

	panicHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(errors.New("test panic"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(panicHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Contains(t, buf.String(), "panic: test panic")
}

func Test_errorHandler_NoPanic(t *testing.T) {
	app := &GoChatApp{}

	called := false
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	handler := app.errorHandler(okHandler)
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
	assert.True(t, called, "expected handler to be called")
}

func Test_tokenFromRequest(t *testing.T) {
	tcs := []struct {
		name       string
		target     string
		header     string
		cookie     string
		allowQuery bool
		want       string
	}{
		{name: "bearer header", target: "/", header: "Bearer abc", want: "abc"},
		{name: "non bearer header ignored", target: "/", header: "Basic abc", want: ""},
		{name: "cookie", target: "/", cookie: "from-cookie", want: "from-cookie"},
		{name: "header wins over cookie", target: "/", header: "Bearer abc", cookie: "from-cookie", want: "abc"},
		{name: "query allowed", target: "/ws?token=q", allowQuery: true, want: "q"},
		{name: "query ignored", target: "/ws?token=q", want: ""},
		{name: "none", target: "/", want: ""},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: tc.cookie})
			}

			assert.Equal(t, tc.want, tokenFromRequest(req, tc.allowQuery))
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	verifier := auth.NewVerifier([]byte("key"), "")
	app := &GoChatApp{log: testutil.TestLogger(t), verifier: verifier}
	valid, err := verifier.Issue(7, time.Hour)
	assert.NoError(t, err)

	tcs := []struct {
		name     string
		token    string
		wantCode int
	}{
		{name: "valid", token: valid, wantCode: http.StatusOK},
		{name: "missing", token: "", wantCode: http.StatusUnauthorized},
		{name: "garbage", token: "garbage", wantCode: http.StatusUnauthorized},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			var gotId int
			next := func(w http.ResponseWriter, r *http.Request) {
				gotId, _ = UserId(r.Context())
				w.WriteHeader(http.StatusOK)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.token != "" {
				req.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: tc.token})
			}
			rr := httptest.NewRecorder()
			app.authMiddleware(next)(rr, req)

			assert.Equal(t, tc.wantCode, rr.Code)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, 7, gotId)
				assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store")
			}
		})
	}
}

package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gamecafe/panelsync/internal/api"
	"github.com/gamecafe/panelsync/internal/querycache"
	"github.com/gamecafe/panelsync/internal/session"
	"github.com/gamecafe/panelsync/internal/socket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)

	return l
}

type fakeSocket struct {
	state      socket.State
	reconnects int
}

func (f *fakeSocket) State() socket.State { return f.state }

func (f *fakeSocket) Reconnect() {
	f.reconnects++
	f.state = socket.StateConnecting
}

type fixture struct {
	cache   *querycache.Cache
	mirror  *session.Mirror
	sock    *fakeSocket
	handler http.Handler
}

func newFixture(t *testing.T, cacheOpts ...querycache.Option) *fixture {
	t.Helper()

	cache, err := querycache.New(testLogger(), cacheOpts...)
	if err != nil {
		t.Fatalf("querycache.New: %v", err)
	}

	f := &fixture{
		cache: cache,
		mirror: session.NewMirror(session.Snapshot{
			User:       session.User{ID: "u1", Role: "2"},
			LocationID: "1",
			Date:       "2024-01-01",
		}),
		sock: &fakeSocket{state: socket.StateConnected},
	}
	f.handler = api.NewRouter(context.Background(), &api.RouterDeps{
		Log:         testLogger(),
		Cache:       f.cache,
		Session:     f.mirror,
		Socket:      f.sock,
		CORSOrigins: []string{"http://localhost:3000"},
		Version:     "test-v1",
	})

	return f
}

// do performs an HTTP request against the router and returns the recorder.
func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	req.RemoteAddr = "127.0.0.1:5555"

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	return w
}

package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gamecafe/panelsync/internal/model"
	"github.com/gamecafe/panelsync/internal/querycache"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL, WithToken("test-token"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, HealthResponse{Status: "ok", Version: "2.4.1"})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "2.4.1" {
		t.Errorf("unexpected health %+v", resp)
	}
}

func TestFetch_ListScopedByPathSegments(t *testing.T) {
	var gotPath string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /table/{location}/{date}": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			jsonResponse(w, 200, []map[string]any{{"_id": 5, "name": "T5"}})
		},
	})

	v, err := c.Fetch(context.Background(), querycache.NewKey(model.PathTables, 1, "2024-01-01"))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if gotPath != "/table/1/2024-01-01" {
		t.Errorf("requested %q", gotPath)
	}

	docs, ok := v.([]model.Doc)
	if !ok || len(docs) != 1 {
		t.Fatalf("expected []model.Doc, got %T %v", v, v)
	}
	if id, _ := docs[0].ID(); id != "5" {
		t.Errorf("id = %s", id)
	}
}

func TestFetch_ObjectAndUnscopedKey(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /notification/new": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"count": 3})
		},
	})

	v, err := c.Fetch(context.Background(), querycache.NewKey(model.PathNotificationsNew))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc, ok := v.(model.Doc); !ok || doc["count"] != float64(3) {
		t.Errorf("expected model.Doc, got %T %v", v, v)
	}
}

func TestFetch_ServesAsCacheFetcher(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /menu/kitchens": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, []map[string]any{{"_id": 3}})
		},
	})

	var f querycache.Fetcher = c
	if _, err := f.Fetch(context.Background(), querycache.NewKey(model.PathKitchens)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
}

func TestSessionResources(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /users/me": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"_id": "u1", "name": "Ada", "role": map[string]any{"_id": 2}})
		},
		"GET /menu/kitchens": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, []map[string]any{{"_id": 3, "name": "bar"}})
		},
		"GET /menu/categories": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, []map[string]any{{"_id": 7, "isAutoServed": true}, {"_id": 8}})
		},
	})
	ctx := context.Background()

	me, err := c.Me(ctx)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if role, _ := me.Ref("role"); role != "2" {
		t.Errorf("role = %s", role)
	}

	kitchens, err := c.Kitchens(ctx)
	if err != nil || len(kitchens) != 1 {
		t.Fatalf("Kitchens: err=%v, n=%d", err, len(kitchens))
	}

	categories, err := c.Categories(ctx)
	if err != nil || len(categories) != 2 {
		t.Fatalf("Categories: err=%v, n=%d", err, len(categories))
	}
}

func TestAPIError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /table/1/2024-01-01": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 404, map[string]string{"code": "not_found", "message": "no tables"})
		},
		"GET /users/me": func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "token expired", http.StatusUnauthorized)
		},
	})
	ctx := context.Background()

	_, err := c.Fetch(ctx, querycache.NewKey(model.PathTables, 1, "2024-01-01"))
	if !IsNotFound(err) {
		t.Errorf("expected not found, got: %v", err)
	}

	_, err = c.Me(ctx)
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized, got: %v", err)
	}

	var apiErr *APIError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &apiErr) || apiErr.Code != "unknown" {
		t.Errorf("plain-text error body not kept: %v", err)
	}
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /health": func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			jsonResponse(w, 200, HealthResponse{Status: "ok"})
		},
	})

	c.Health(context.Background()) //nolint:errcheck
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header: got %q, want %q", gotAuth, "Bearer test-token")
	}
}

func TestResourcePath(t *testing.T) {
	tests := []struct {
		path  string
		scope []string
		want  string
	}{
		{"/order/today", []string{"2024-01-01"}, "/order/today/2024-01-01"},
		{"/notification/new", nil, "/notification/new"},
		{"/stock/query", []string{"1", ""}, "/stock/query/1"},
		{"/visits", []string{"a b"}, "/visits/a%20b"},
	}
	for _, tt := range tests {
		if got := resourcePath(tt.path, tt.scope); got != tt.want {
			t.Errorf("resourcePath(%q, %v) = %q, want %q", tt.path, tt.scope, got, tt.want)
		}
	}
}

package youtube

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"convify/internal/services"
)

func TestClientFetchTitle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/yt/videos" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("part") != "snippet" || q.Get("key") != "secret" {
			t.Errorf("unexpected query %v", q)
		}
		switch q.Get("id") {
		case "known":
			_, _ = w.Write([]byte(`{"items":[{"id":"known","snippet":{"title":"Hello: World / Live"}}]}`))
		case "broken":
			http.Error(w, `{"error":"quota"}`, http.StatusForbidden)
		default:
			_, _ = w.Write([]byte(`{"items":[]}`))
		}
	}))
	defer server.Close()

	client, err := NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/yt"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	title, err := client.FetchTitle(context.Background(), "known")
	if err != nil {
		t.Fatalf("FetchTitle: %v", err)
	}
	if title != "Hello- World - Live" {
		t.Fatalf("title = %q", title)
	}

	if _, err := client.FetchTitle(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := client.FetchTitle(context.Background(), "broken"); !errors.Is(err, services.ErrCollaborator) {
		t.Fatalf("expected collaborator failure, got %v", err)
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error without api key")
	}
}

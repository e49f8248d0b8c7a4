package testsupport

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// FakeYouTube serves the videos endpoint of the Data API. Every id resolves to
// the title "Daemon Song <id>" except "missing", which returns no items.
func FakeYouTube(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("id")
		w.Header().Set("Content-Type", "application/json")
		if id == "missing" {
			_, _ = w.Write([]byte(`{"items":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"` + id + `","snippet":{"title":"Daemon Song ` + id + `"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

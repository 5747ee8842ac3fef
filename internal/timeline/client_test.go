package timeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/remote"
)

func TestFetchTimeline_QueryAndDecode(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		got = map[string]string{
			"screen_name": q.Get("screen_name"),
			"trim_user":   q.Get("trim_user"),
			"count":       q.Get("count"),
			"since_id":    q.Get("since_id"),
		}
		_, _ = w.Write([]byte(`[{"id_str":"11","text":"b","created_at":"t","user":{"id_str":"u"}},{"id_str":"10","text":"a","created_at":"t","user":{"id_str":"u"}}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tw", 20, time.Second)
	posts, err := c.FetchTimeline(context.Background(), "alice", "9")
	if err != nil {
		t.Fatalf("FetchTimeline: %v", err)
	}
	if len(posts) != 2 || posts[0].PostID() != "11" {
		t.Fatalf("unexpected posts: %+v", posts)
	}
	want := map[string]string{"screen_name": "alice", "trim_user": "1", "count": "20", "since_id": "9"}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("query %s = %q; want %q", k, got[k], v)
		}
	}
}

func TestFetchTimeline_NoCursorOmitsSinceID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.URL.Query()["since_id"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	posts, err := NewClient(srv.URL, "tw", 0, time.Second).FetchTimeline(context.Background(), "bob", "")
	if err != nil {
		t.Fatalf("FetchTimeline: %v", err)
	}
	if len(posts) != 0 {
		t.Fatalf("expected no posts, got %d", len(posts))
	}
}

func TestFetchTimeline_ErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tw", 20, time.Second).FetchTimeline(context.Background(), "bob", "")
	if !errors.Is(err, remote.ErrTransient) {
		t.Fatalf("err = %v; want transient", err)
	}
}

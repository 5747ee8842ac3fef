package anchor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/remote"
)

func lookupServer(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anchorids" || r.URL.Query().Get("hash") != "abc" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Header.Get("Authorization") != "Bearer wt" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFindExisting(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		status  int
		want    string
		wantErr error
	}{
		{name: "none", body: `{"totalElements":0,"content":[]}`, status: 200},
		{name: "id string", body: `{"totalElements":1,"content":["r-1"]}`, status: 200, want: "r-1"},
		{name: "id object", body: `{"totalElements":2,"content":[{"id":"r-2"},{"id":"r-3"}]}`, status: 200, want: "r-2"},
		{name: "missing total", body: `{"content":[]}`, status: 200, wantErr: remote.ErrMalformed},
		{name: "empty content", body: `{"totalElements":1,"content":[]}`, status: 200, wantErr: remote.ErrMalformed},
		{name: "bad content", body: `{"totalElements":1,"content":[{}]}`, status: 200, wantErr: remote.ErrMalformed},
		{name: "rejected", body: `{}`, status: 403, wantErr: remote.ErrRejected},
		{name: "server error", body: ``, status: 500, wantErr: remote.ErrTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := lookupServer(t, tc.body, tc.status)
			c := NewClient(srv.URL, "wt", 0, 0, time.Second)
			got, err := c.FindExisting(context.Background(), "abc")
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("err = %v; want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("FindExisting: %v", err)
			}
			if tc.want == "" {
				if got != nil {
					t.Fatalf("expected no receipt, got %+v", got)
				}
				return
			}
			if got == nil || got.ID != tc.want {
				t.Fatalf("receipt = %+v; want %s", got, tc.want)
			}
		})
	}
}

func TestCreateAnchor_SendsNameAndHash(t *testing.T) {
	var gotReq domain.AnchorRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/anchor" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "r-9", "hash": string(gotReq.Hash)})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "wt", 0, 0, time.Second)
	rc, err := c.CreateAnchor(context.Background(), domain.AnchorRequest{Name: "alice:5", Hash: "abc"})
	if err != nil {
		t.Fatalf("CreateAnchor: %v", err)
	}
	if rc.ID != "r-9" {
		t.Fatalf("receipt = %+v", rc)
	}
	if gotReq.Name != "alice:5" || gotReq.Hash != "abc" {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestCreateAnchor_ValidatesResponse(t *testing.T) {
	cases := map[string]string{
		"missing id":    `{"hash":"abc"}`,
		"hash mismatch": `{"id":"r","hash":"def"}`,
		"not an object": `"r"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()
			_, err := NewClient(srv.URL, "wt", 0, 0, time.Second).CreateAnchor(context.Background(), domain.AnchorRequest{Name: "a:1", Hash: "abc"})
			if !errors.Is(err, remote.ErrMalformed) {
				t.Fatalf("err = %v; want malformed", err)
			}
		})
	}
}

func TestCreateAnchor_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"message":"no credits"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "wt", 0, 0, time.Second).CreateAnchor(context.Background(), domain.AnchorRequest{Name: "a:1", Hash: "abc"})
	if !errors.Is(err, remote.ErrRejected) {
		t.Fatalf("err = %v; want rejected", err)
	}
}

func TestCreateAnchor_RateLimited(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"id":"r"}`))
	}))
	defer srv.Close()

	// One token, refilled every ten seconds: the second call cannot get one
	// before the context expires.
	c := NewClient(srv.URL, "wt", 0.1, 1, time.Second)
	if _, err := c.CreateAnchor(context.Background(), domain.AnchorRequest{Name: "a:1", Hash: "abc"}); err != nil {
		t.Fatalf("first CreateAnchor: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.CreateAnchor(ctx, domain.AnchorRequest{Name: "a:2", Hash: "abd"})
	if !errors.Is(err, remote.ErrTransient) {
		t.Fatalf("err = %v; want transient", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("throttled call reached the server: %d calls", calls.Load())
	}
}

package s3gw

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/server/middleware"
)

var hash = "cd" + strings.Repeat("34", 31)

func newServer(t *testing.T, opt Options) (*Server, *blob.MemoryStore) {
	t.Helper()
	store := blob.NewMemoryStore(func() time.Time { return time.Unix(1700000000, 0) })
	cache, err := filecache.New(store, "https://cdn.example/cache")
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	d, err := handler.NewDispatcher(handler.Options{Cache: cache, Meta: meta.NewMemoryStore("salt")})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return &Server{Cache: cache, Handler: d, Opt: opt}, store
}

func serve(srv *Server, method, target string, body io.Reader, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func TestS3GatewayGetRegenerates(t *testing.T) {
	srv, store := newServer(t, Options{})
	key := "/identicon/c/d/" + hash + "-32.svg"

	rr := serve(srv, http.MethodGet, key, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "<svg") {
		t.Fatalf("expected svg body, got %q", rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/svg+xml" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if rr.Header().Get("ETag") == "" {
		t.Fatalf("expected an etag")
	}

	rr = serve(srv, http.MethodGet, "/avatars"+key, nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with explicit bucket, got %d", rr.Code)
	}
	if store.Puts() != 1 {
		t.Fatalf("expected one write, got %d", store.Puts())
	}
}

func TestS3GatewayGetUnknownKey(t *testing.T) {
	srv, _ := newServer(t, Options{})
	rr := serve(srv, http.MethodGet, "/identicon/c/d/nothex-32.svg", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	rr = serve(srv, http.MethodGet, "/other/identicon/c/d/"+hash+"-32.svg", nil, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown namespace, got %d", rr.Code)
	}
}

func TestS3GatewayRange(t *testing.T) {
	srv, _ := newServer(t, Options{})
	key := "/identicon/c/d/" + hash + "-32.svg"
	rr := serve(srv, http.MethodGet, key, nil, map[string]string{"Range": "bytes=0-3"})
	// gofakes3 answers ranged reads with 200 and a Content-Range header.
	if rr.Code != http.StatusOK && rr.Code != http.StatusPartialContent {
		t.Fatalf("expected 200 or 206, got %d", rr.Code)
	}
	if cr := rr.Header().Get("Content-Range"); !strings.HasPrefix(cr, "bytes 0-3/") {
		t.Fatalf("unexpected Content-Range %q", cr)
	}
	if rr.Body.Len() != 4 {
		t.Fatalf("expected 4 bytes, got %d", rr.Body.Len())
	}
}

func TestS3GatewayListAndDelete(t *testing.T) {
	srv, store := newServer(t, Options{Bucket: "faces"})
	ctx := context.Background()
	key := "retro/c/d/" + hash + "-16.png"
	if err := srv.Cache.Set(ctx, key, []byte("png"), false); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rr := serve(srv, http.MethodGet, "/faces?list-type=2&prefix=retro/", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "<Key>"+key+"</Key>") {
		t.Fatalf("listing missing key: %s", rr.Body.String())
	}

	rr = serve(srv, http.MethodDelete, "/"+key, nil, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
}

func TestS3GatewayRejectsWrites(t *testing.T) {
	srv, store := newServer(t, Options{})
	rr := serve(srv, http.MethodPut, "/identicon/c/d/"+hash+"-32.svg", bytes.NewBufferString("<svg/>"), nil)
	if rr.Code < 400 {
		t.Fatalf("expected write to be refused, got %d", rr.Code)
	}
	if store.Len() != 0 {
		t.Fatalf("expected nothing stored, got %d", store.Len())
	}
}

func TestS3GatewayAuthMiddleware(t *testing.T) {
	srv, _ := newServer(t, Options{APIKey: "secret"})
	rr := serve(srv, http.MethodGet, "/?list-type=2", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = serve(srv, http.MethodGet, "/?list-type=2", nil, map[string]string{"X-API-Key": "secret"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after auth, got %d", rr.Code)
	}
}

func TestS3GatewayRateLimit(t *testing.T) {
	now := time.Unix(0, 0)
	srv, _ := newServer(t, Options{
		RateLimit: middleware.RateLimitOptions{
			Requests: 1,
			Window:   time.Second,
			Now:      func() time.Time { return now },
		},
	})
	if rr := serve(srv, http.MethodGet, "/", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := serve(srv, http.MethodGet, "/", nil, nil); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	now = now.Add(time.Second)
	if rr := serve(srv, http.MethodGet, "/", nil, nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 after window, got %d", rr.Code)
	}
}

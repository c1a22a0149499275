// Package s3gw exposes the avatar cache through a read-only subset of the
// S3 API so object-storage tooling can list, fetch and delete entries.
package s3gw

import (
	"context"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/johannesboyne/gofakes3"

	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/server/middleware"
)

// DefaultBucket names the bucket when Options.Bucket is empty.
const DefaultBucket = "avatars"

// Options configure the S3 gateway.
type Options struct {
	Bucket    string
	APIKey    string
	RateLimit middleware.RateLimitOptions
}

// Server serves a filecache.Cache as one S3 bucket.
type Server struct {
	Cache   *filecache.Cache
	// Handler, when set, rebuilds missing entries on read.
	Handler handler.Handler
	Opt     Options

	handlerOnce sync.Once
	handler     http.Handler
}

// Start listens on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.httpHandler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpHandler().ServeHTTP(w, r)
}

func (s *Server) bucket() string {
	if s.Opt.Bucket == "" {
		return DefaultBucket
	}
	return s.Opt.Bucket
}

func (s *Server) httpHandler() http.Handler {
	s.handlerOnce.Do(func() {
		backend := NewBackend(s.Cache, s.Handler, s.bucket())
		s3 := gofakes3.New(backend).Server()
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.rewriteBucketPath(r)
			s3.ServeHTTP(w, r)
		})
		s.handler = middleware.Wrap(h,
			middleware.APIKeyAuth(s.Opt.APIKey),
			middleware.RateLimit(s.Opt.RateLimit),
		)
	})
	return s.handler
}

// rewriteBucketPath lets clients address objects without the bucket
// segment: /identicon/a/b/... is served as /{bucket}/identicon/a/b/...
func (s *Server) rewriteBucketPath(r *http.Request) {
	bucket := s.bucket()
	trimmed := strings.TrimPrefix(r.URL.Path, "/")
	if trimmed == "" {
		return
	}
	if strings.HasPrefix(trimmed, bucket+"/") || trimmed == bucket {
		return
	}
	newPath := path.Join("/", bucket, trimmed)
	r.URL.Path = newPath
	r.URL.RawPath = newPath
}

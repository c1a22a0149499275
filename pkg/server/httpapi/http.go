// Package httpapi serves cached avatars, the static icon set and a small
// admin surface over HTTP.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/icon"
	"github.com/jacktea/xavatar/pkg/imageedit"
	"github.com/jacktea/xavatar/pkg/server/middleware"
	"github.com/jacktea/xavatar/pkg/sharder"
	"github.com/jacktea/xavatar/pkg/xerrors"
)

// Server exposes a filecache.Cache over HTTP. Missing entries are rebuilt
// through Handler.CacheImage before they are served.
type Server struct {
	Cache   *filecache.Cache
	Handler handler.Handler
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	Log     *slog.Logger
	Opts    Options
}

// Options configure auth, rate limiting and response caching.
type Options struct {
	// APIKey protects the /admin routes; blank disables them.
	APIKey    string
	RateLimit middleware.RateLimitOptions
	// CacheMaxAge sets Cache-Control on served images.
	CacheMaxAge time.Duration
	// Fallback is where /avatar redirects when nothing can be produced.
	Fallback string
}

// Start begins listening on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if s.Metrics != nil {
		r.Handle("/metrics", s.Metrics)
	}
	r.Group(func(r chi.Router) {
		if cc := middleware.CacheControl(s.Opts.CacheMaxAge); cc != nil {
			r.Use(cc)
		}
		r.Get("/assets/images/{name}", s.handleAsset)
		r.Get("/cache/{ns}/{h0}/{h1}/{file}", s.handleCache)
		r.Head("/cache/{ns}/{h0}/{h1}/{file}", s.handleCache)
	})
	r.Get("/avatar/{hash}", s.handleAvatar)
	if auth := middleware.APIKeyAuth(s.Opts.APIKey); auth != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth)
			r.Delete("/cache/{ns}", s.handleInvalidate)
		})
	}
	return s.applyMiddleware(r)
}

func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != path.Base(name) || path.Ext(name) != ".svg" {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(icon.Images, "images/"+name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rel := path.Join(chi.URLParam(r, "ns"), chi.URLParam(r, "h0"), chi.URLParam(r, "h1"), chi.URLParam(r, "file"))
	entry, err := sharder.Parse(rel)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	rel = entry.Path()
	data, info, err := s.Cache.Get(ctx, rel)
	if err != nil && xerrors.KindOf(err) == xerrors.KindNotFound && s.Handler != nil {
		if s.Handler.CacheImage(ctx, entry.Namespace, entry.Hash, entry.Size, entry.Namespace, entry.Ext) {
			data, info, err = s.Cache.Get(ctx, rel)
		}
	}
	if err != nil {
		httpError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType(entry.Ext))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if entry.Ext == "svg" {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; sandbox")
	}
	http.ServeContent(w, r, path.Base(rel), info.ModTime, bytes.NewReader(data))
}

// handleAvatar resolves /avatar/{hash}?s=size&d=type and redirects to the
// resulting URL.
func (s *Server) handleAvatar(w http.ResponseWriter, r *http.Request) {
	if s.Handler == nil {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()
	size := 80
	if raw := q.Get("s"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}
	def := q.Get("d")
	if def == "" {
		def = "mystery"
	}
	args := handler.DefaultIconArgs{Default: def, Force: q.Get("f") == "y"}
	target := s.Handler.URL(r.Context(), s.Opts.Fallback, strings.ToLower(chi.URLParam(r, "hash")), size, args)
	if target == "" {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleInvalidate removes entries under a namespace. Optional query
// parameters: pattern (regexp over the relative path) and older_than (a
// Go duration).
func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ns := chi.URLParam(r, "ns")
	var re *regexp.Regexp
	if raw := r.URL.Query().Get("pattern"); raw != "" {
		var err error
		if re, err = regexp.Compile(raw); err != nil {
			httpError(w, xerrors.Wrap(xerrors.KindInvalid, "invalidate", raw, err))
			return
		}
	}
	var (
		res filecache.Result
		err error
	)
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		age, perr := time.ParseDuration(raw)
		if perr != nil {
			httpError(w, xerrors.Wrap(xerrors.KindInvalid, "invalidate", raw, perr))
			return
		}
		res, err = s.Cache.InvalidateOlderThan(ctx, age, ns, re)
	} else {
		res, err = s.Cache.Invalidate(ctx, ns, re)
	}
	if err != nil {
		httpError(w, err)
		return
	}
	s.logger().Info("cache invalidated", "namespace", ns, "files", res.Files, "bytes", res.Bytes)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Files int   `json:"files"`
		Bytes int64 `json:"bytes"`
	}{res.Files, res.Bytes})
}

func contentType(ext string) string {
	if m, ok := imageedit.MimeForExt(ext); ok {
		return m
	}
	return "application/octet-stream"
}

func httpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch xerrors.KindOf(err) {
	case xerrors.KindNotFound:
		status = http.StatusNotFound
	case xerrors.KindInvalid:
		status = http.StatusBadRequest
	case xerrors.KindStorageUnavailable:
		status = http.StatusServiceUnavailable
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) applyMiddleware(h http.Handler) http.Handler {
	return middleware.Wrap(h,
		middleware.RequestLog(s.Log),
		middleware.RateLimit(s.Opts.RateLimit),
	)
}

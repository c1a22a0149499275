// Package gc expires old avatar cache entries in the background.
package gc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/observe"
)

// Rule expires entries under Subdir that are older than MaxAge and, when
// Pattern is set, whose relative path matches it.
type Rule struct {
	Subdir  string
	MaxAge  time.Duration
	Pattern *regexp.Regexp
}

// Options configures a Sweeper.
type Options struct {
	Cache   *filecache.Cache
	Rules   []Rule
	Logger  *slog.Logger
	Metrics observe.Metrics
}

// Sweeper applies age-based invalidation rules to a cache.
type Sweeper struct {
	cache   *filecache.Cache
	rules   []Rule
	logger  *slog.Logger
	metrics observe.Metrics
}

// NewSweeper wires a cache and its expiry rules.
func NewSweeper(opts Options) *Sweeper {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.Noop()
	}
	return &Sweeper{
		cache:   opts.Cache,
		rules:   opts.Rules,
		logger:  logger,
		metrics: metrics,
	}
}

// Sweep performs one pass over every rule, returning what was removed.
func (s *Sweeper) Sweep(ctx context.Context) (filecache.Result, error) {
	var total filecache.Result
	if s.cache == nil {
		return total, fmt.Errorf("gc sweeper missing cache")
	}
	for _, rule := range s.rules {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		if rule.MaxAge <= 0 {
			continue
		}
		res, err := s.cache.InvalidateOlderThan(ctx, rule.MaxAge, rule.Subdir, rule.Pattern)
		total.Files += res.Files
		total.Bytes += res.Bytes
		s.metrics.RecordEvicted(ctx, res.Files, res.Bytes)
		if err != nil {
			return total, fmt.Errorf("gc sweep %q: %w", rule.Subdir, err)
		}
	}
	return total, nil
}

// Start launches a background sweep loop until ctx is canceled.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) context.CancelFunc {
	if interval <= 0 {
		interval = time.Hour
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			res, err := s.Sweep(ctx)
			switch {
			case err != nil && !errors.Is(err, context.Canceled):
				s.logger.Warn("gc sweep failed", "err", err)
			case res.Files > 0:
				s.logger.Info("gc sweep", "files", res.Files, "bytes", res.Bytes)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}

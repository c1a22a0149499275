package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/gc"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/icon"
	"github.com/jacktea/xavatar/pkg/observe"
	"github.com/jacktea/xavatar/pkg/server/httpapi"
	"github.com/jacktea/xavatar/pkg/server/middleware"
	"github.com/jacktea/xavatar/pkg/server/s3gw"
)

func initCommands() {
	rootCmd.AddCommand(
		newURLCmd(),
		newGravatarCmd(),
		newLegacyCmd(),
		newUploadCmd(),
		newGenerateCmd(),
		newInvalidateCmd(),
		newSweepCmd(),
		newServeCmd(),
		newServeS3Cmd(),
		newSaltCmd(),
		newProvidersCmd(),
	)
}

// avatarFlags are the per-request options shared by the URL commands.
type avatarFlags struct {
	size     int
	mime     string
	force    bool
	fallback string
}

func (f *avatarFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&f.size, "size", "s", 96, "avatar size in pixels")
	cmd.Flags().StringVar(&f.mime, "mime", "", "output MIME type (default depends on the source)")
	cmd.Flags().BoolVar(&f.force, "force", false, "rebuild even when cached")
	cmd.Flags().StringVar(&f.fallback, "fallback", "", "URL printed when nothing can be produced")
}

// printURL resolves args through the dispatcher and prints the result.
func printURL(w io.Writer, hash string, f avatarFlags, args handler.Args) error {
	d, err := application.dispatcher(nil)
	if err != nil {
		return err
	}
	url := d.URL(application.ctx, f.fallback, hash, f.size, args)
	if url == "" {
		return errors.New("no avatar could be produced")
	}
	fmt.Fprintln(w, url)
	return nil
}

func newURLCmd() *cobra.Command {
	var (
		flags         avatarFlags
		defaultType   string
		caseSensitive bool
	)
	cmd := &cobra.Command{
		Use:   "url <identifier>",
		Short: "Print the default icon URL for an identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := application.hasher.Hash(args[0], caseSensitive)
			return printURL(cmd.OutOrStdout(), hash, flags, handler.DefaultIconArgs{
				Default:  defaultType,
				MimeType: flags.mime,
				Force:    flags.force,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&defaultType, "default", "d", "identicon", "default icon type or image URL")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "hash the identifier without lower-casing it")
	return cmd
}

func newGravatarCmd() *cobra.Command {
	var (
		flags  avatarFlags
		rating string
	)
	cmd := &cobra.Command{
		Use:   "gravatar <email>",
		Short: "Cache the remote service avatar for an email address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := application.hasher.Hash(args[0], false)
			return printURL(cmd.OutOrStdout(), hash, flags, handler.GravatarArgs{
				Email:    args[0],
				Rating:   rating,
				MimeType: flags.mime,
				Force:    flags.force,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&rating, "rating", "g", "maximum content rating")
	return cmd
}

func newLegacyCmd() *cobra.Command {
	var flags avatarFlags
	cmd := &cobra.Command{
		Use:   "legacy <image-url>",
		Short: "Cache a resized copy of a remote image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := application.hasher.Hash(args[0], true)
			return printURL(cmd.OutOrStdout(), hash, flags, handler.LegacyArgs{
				URL:      args[0],
				MimeType: flags.mime,
				Force:    flags.force,
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func newUploadCmd() *cobra.Command {
	var (
		flags     avatarFlags
		timestamp bool
	)
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Cache a resized copy of a local image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			hash := application.hasher.Hash(file, true)
			return printURL(cmd.OutOrStdout(), hash, flags, handler.UploadArgs{
				File:      file,
				MimeType:  flags.mime,
				Force:     flags.force,
				Timestamp: timestamp,
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&timestamp, "timestamp", false, "append the cache file's modification time")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var (
		size   int
		output string
		raw    bool
	)
	cmd := &cobra.Command{
		Use:   "generate <type> <identifier>",
		Short: "Render a generated icon without touching the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := args[1]
			if !raw {
				hash = application.hasher.Hash(hash, false)
			}
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return doGenerate(w, application.registry, args[0], hash, size)
		},
	}
	cmd.Flags().IntVarP(&size, "size", "s", 96, "icon size in pixels")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&raw, "raw", false, "treat the identifier as an identity hash")
	return cmd
}

func doGenerate(w io.Writer, registry *icon.Registry, typ, hash string, size int) error {
	p, ok := registry.Resolve(typ)
	if !ok || p.Kind != icon.KindGenerator {
		return fmt.Errorf("%q is not a generated icon type", typ)
	}
	data, err := p.Generator.Build(hash, size)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func newInvalidateCmd() *cobra.Command {
	var (
		pattern   string
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invalidate <namespace>",
		Short: "Remove cached entries under a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return doInvalidate(application.ctx, cmd.OutOrStdout(), application.cache, args[0], pattern, olderThan)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "only remove entries whose relative path matches this regexp")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "only remove entries older than this")
	return cmd
}

func doInvalidate(ctx context.Context, w io.Writer, cache *filecache.Cache, ns, pattern string, olderThan time.Duration) error {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	var (
		res filecache.Result
		err error
	)
	if olderThan > 0 {
		res, err = cache.InvalidateOlderThan(ctx, olderThan, ns, re)
	} else {
		res, err = cache.Invalidate(ctx, ns, re)
	}
	if err != nil {
		return err
	}
	printResult(w, res)
	return nil
}

func printResult(w io.Writer, res filecache.Result) {
	fmt.Fprintf(w, "removed %s files (%s)\n", humanize.Comma(int64(res.Files)), humanize.Bytes(uint64(res.Bytes)))
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run one expiry pass over the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			sweeper := gc.NewSweeper(gc.Options{
				Cache:  application.cache,
				Rules:  sweepRules(viper.GetStringSlice("sweep.namespaces"), viper.GetDuration("sweep.max_age")),
				Logger: application.logger,
			})
			res, err := sweeper.Sweep(application.ctx)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	return cmd
}

func sweepRules(namespaces []string, maxAge time.Duration) []gc.Rule {
	var rules []gc.Rule
	for _, ns := range namespaces {
		ns = strings.TrimSpace(ns)
		if ns == "" {
			continue
		}
		rules = append(rules, gc.Rule{Subdir: ns, MaxAge: maxAge})
	}
	return rules
}

func rateLimit(requests int, window time.Duration) middleware.RateLimitOptions {
	if requests <= 0 {
		return middleware.RateLimitOptions{}
	}
	return middleware.RateLimitOptions{Requests: requests, Window: window, PerClient: true}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve cache files, static icons and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(application.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := observe.NewPrometheus()
			if err != nil {
				return fmt.Errorf("init metrics: %w", err)
			}
			defer provider.Shutdown(context.Background())

			d, err := application.dispatcher(provider.Metrics())
			if err != nil {
				return err
			}
			if interval := viper.GetDuration("sweep.interval"); interval > 0 {
				sweeper := gc.NewSweeper(gc.Options{
					Cache:   application.cache,
					Rules:   sweepRules(viper.GetStringSlice("sweep.namespaces"), viper.GetDuration("sweep.max_age")),
					Logger:  application.logger,
					Metrics: provider.Metrics(),
				})
				cancel := sweeper.Start(ctx, interval)
				defer cancel()
			}

			server := &httpapi.Server{
				Cache:   application.cache,
				Handler: d,
				Metrics: provider.Handler(),
				Log:     application.logger,
				Opts: httpapi.Options{
					APIKey:      viper.GetString("serve.api_key"),
					RateLimit:   rateLimit(viper.GetInt("serve.rate_limit"), viper.GetDuration("serve.rate_window")),
					CacheMaxAge: viper.GetDuration("serve.cache_max_age"),
					Fallback:    viper.GetString("serve.fallback"),
				},
			}
			addr := viper.GetString("serve.addr")
			application.logger.Info("serving avatars", "addr", addr)
			if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("api-key", "", "enable the admin routes behind this API key")
	cmd.Flags().Int("rate-limit", 0, "requests allowed per rate window and client (0 disables)")
	cmd.Flags().Duration("rate-window", time.Second, "rate limit window")
	cmd.Flags().Duration("cache-max-age", 24*time.Hour, "Cache-Control max-age of served images")
	cmd.Flags().String("fallback", "", "redirect target when no avatar can be produced")
	cmd.Flags().Duration("sweep-interval", 0, "run the expiry sweeper at this interval (0 disables)")
	bindConfig("serve.addr", cmd.Flags().Lookup("addr"))
	bindConfig("serve.api_key", cmd.Flags().Lookup("api-key"))
	bindConfig("serve.rate_limit", cmd.Flags().Lookup("rate-limit"))
	bindConfig("serve.rate_window", cmd.Flags().Lookup("rate-window"))
	bindConfig("serve.cache_max_age", cmd.Flags().Lookup("cache-max-age"))
	bindConfig("serve.fallback", cmd.Flags().Lookup("fallback"))
	bindConfig("sweep.interval", cmd.Flags().Lookup("sweep-interval"))
	return cmd
}

func newServeS3Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-s3",
		Short: "Expose the cache as an S3-compatible bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(application.ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := application.dispatcher(nil)
			if err != nil {
				return err
			}
			server := &s3gw.Server{
				Cache:   application.cache,
				Handler: d,
				Opt: s3gw.Options{
					Bucket:    viper.GetString("serve_s3.bucket"),
					APIKey:    viper.GetString("serve_s3.api_key"),
					RateLimit: rateLimit(viper.GetInt("serve_s3.rate_limit"), viper.GetDuration("serve_s3.rate_window")),
				},
			}
			addr := viper.GetString("serve_s3.addr")
			application.logger.Info("serving s3 gateway", "addr", addr, "bucket", server.Opt.Bucket)
			if err := server.Start(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", ":9000", "listen address")
	cmd.Flags().String("bucket", s3gw.DefaultBucket, "bucket name exposed via the gateway")
	cmd.Flags().String("api-key", "", "require API key (X-API-Key header)")
	cmd.Flags().Int("rate-limit", 0, "requests allowed per rate window and client (0 disables)")
	cmd.Flags().Duration("rate-window", time.Second, "rate limit window")
	bindConfig("serve_s3.addr", cmd.Flags().Lookup("addr"))
	bindConfig("serve_s3.bucket", cmd.Flags().Lookup("bucket"))
	bindConfig("serve_s3.api_key", cmd.Flags().Lookup("api-key"))
	bindConfig("serve_s3.rate_limit", cmd.Flags().Lookup("rate-limit"))
	bindConfig("serve_s3.rate_window", cmd.Flags().Lookup("rate-window"))
	return cmd
}

func newSaltCmd() *cobra.Command {
	var identifier string
	cmd := &cobra.Command{
		Use:   "salt",
		Short: "Print the installation salt, or the hash of --hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			if identifier != "" {
				fmt.Fprintln(cmd.OutOrStdout(), application.hasher.Hash(identifier, false))
				return nil
			}
			salt, err := application.meta.Salt(application.ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), salt)
			return nil
		},
	}
	cmd.Flags().StringVar(&identifier, "hash", "", "print the identity hash of this identifier instead")
	return cmd
}

func newProvidersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the default icon types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return doProviders(cmd.OutOrStdout(), application.registry)
		},
	}
}

func doProviders(w io.Writer, registry *icon.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPTION\tKIND\tNAMESPACE\tTYPES")
	for _, p := range registry.Providers() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.OptionValue(), p.Kind, p.Namespace(), strings.Join(p.Types, ","))
	}
	return tw.Flush()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jacktea/xavatar/pkg/blob"
	"github.com/jacktea/xavatar/pkg/filecache"
	"github.com/jacktea/xavatar/pkg/handler"
	"github.com/jacktea/xavatar/pkg/hasher"
	"github.com/jacktea/xavatar/pkg/icon"
	"github.com/jacktea/xavatar/pkg/meta"
	"github.com/jacktea/xavatar/pkg/observe"
)

type app struct {
	ctx      context.Context
	logger   *slog.Logger
	cache    *filecache.Cache
	meta     meta.Store
	hasher   *hasher.Hasher
	registry *icon.Registry
	cleanup  func()
}

func (a *app) ensureBackend() error {
	if a.cache != nil {
		return nil
	}
	ctx := context.Background()

	logger, err := newLogger(viper.GetString("log_level"))
	if err != nil {
		return err
	}

	store, err := buildStore()
	if err != nil {
		return err
	}
	cache, err := filecache.New(store, viper.GetString("base_url"), filecache.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}

	metaStore, err := openMeta(viper.GetString("meta"))
	if err != nil {
		return fmt.Errorf("init metadata: %w", err)
	}
	salt, err := metaStore.Salt(ctx)
	if err != nil {
		metaStore.Close()
		return fmt.Errorf("load salt: %w", err)
	}

	a.ctx = ctx
	a.logger = logger
	a.cache = cache
	a.meta = metaStore
	a.hasher = hasher.New(hasher.StaticSalt(salt))
	a.registry = icon.Default()
	a.cleanup = func() { _ = metaStore.Close() }
	return nil
}

// dispatcher builds the handler set over the configured cache. Metrics may
// be nil for one-shot commands.
func (a *app) dispatcher(metrics observe.Metrics) (*handler.Dispatcher, error) {
	timeout := viper.GetDuration("http_timeout")
	if timeout <= 0 {
		timeout = handler.DefaultHTTPTimeout
	}
	return handler.NewDispatcher(handler.Options{
		Cache:            a.cache,
		Registry:         a.registry,
		Meta:             a.meta,
		Client:           &http.Client{Timeout: timeout},
		Logger:           a.logger,
		Metrics:          metrics,
		SiteURL:          viper.GetString("site_url"),
		AllowRemote:      viper.GetBool("allow_remote"),
		AssetsURL:        viper.GetString("assets_url"),
		CustomImage:      viper.GetString("custom_image"),
		GravatarEndpoint: viper.GetString("gravatar_endpoint"),
		GravatarMissTTL:  viper.GetDuration("gravatar_miss_ttl"),
	})
}

func (a *app) close() {
	if a.cleanup != nil {
		a.cleanup()
	}
}

var (
	cfgFile     string
	application = &app{}
	rootCmd     = &cobra.Command{
		Use:           "xavatar",
		Short:         "xavatar avatar generation and cache CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return application.ensureBackend()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	initRootFlags()
	initCommands()
}

func main() {
	defer application.close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("xavatar")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "xavatar"))
		}
	}
	viper.SetEnvPrefix("XAVATAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func bindConfig(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initRootFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")

	flags.String("root", ".xavatar/cache", "cache root (local provider)")
	flags.String("base-url", "/cache", "public URL prefix of the cache root")
	flags.String("assets-url", "/assets", "public URL prefix of the static icons")
	flags.String("site-url", "", "site origin local image URLs must share")
	flags.Bool("allow-remote", false, "accept image URLs on other origins")
	flags.String("meta", ".xavatar/meta.db", "path to the salt and source database (empty keeps it in memory)")
	flags.Duration("http-timeout", handler.DefaultHTTPTimeout, "timeout for remote image fetches")
	flags.String("gravatar-endpoint", handler.DefaultGravatarEndpoint, "remote avatar service base URL")
	flags.Duration("gravatar-miss-ttl", 10*time.Minute, "how long a service 404 is remembered (0 disables)")
	flags.String("custom-image", "", "local path of the custom default image")
	flags.String("log-level", "info", "log level: debug|info|warn|error")
	flags.StringSlice("sweep-namespaces", []string{handler.NamespaceGravatar, handler.NamespaceLegacy}, "namespaces the sweeper expires")
	flags.Duration("sweep-max-age", 7*24*time.Hour, "age after which swept entries are removed")

	flags.String("storage-provider", "local", "storage provider: local|s3|oss|cos")
	flags.String("storage-endpoint", "", "remote storage endpoint")
	flags.String("storage-bucket", "", "remote storage bucket name")
	flags.String("storage-region", "", "region (S3 only)")
	flags.String("storage-access-key", "", "remote storage access key")
	flags.String("storage-secret-key", "", "remote storage secret key")
	flags.String("storage-session-token", "", "remote storage session token (S3)")

	flags.String("mirror-provider", "", "secondary storage provider mirrored behind the primary")
	flags.String("mirror-endpoint", "", "secondary storage endpoint")
	flags.String("mirror-bucket", "", "secondary storage bucket")
	flags.String("mirror-region", "", "secondary storage region (S3 only)")
	flags.String("mirror-access-key", "", "secondary storage access key")
	flags.String("mirror-secret-key", "", "secondary storage secret key")
	flags.String("mirror-session-token", "", "secondary storage session token (S3)")
	flags.Bool("mirror-writes", true, "mirror writes to the secondary store")
	flags.Bool("mirror-cache-read", true, "copy secondary reads into the primary store")

	for _, key := range []string{
		"root", "base_url", "assets_url", "site_url", "allow_remote", "meta",
		"http_timeout", "gravatar_endpoint", "gravatar_miss_ttl", "custom_image", "log_level",
		"storage_provider", "storage_endpoint", "storage_bucket", "storage_region",
		"storage_access_key", "storage_secret_key", "storage_session_token",
		"mirror_provider", "mirror_endpoint", "mirror_bucket", "mirror_region",
		"mirror_access_key", "mirror_secret_key", "mirror_session_token",
		"mirror_writes", "mirror_cache_read",
	} {
		bindConfig(key, flags.Lookup(strings.ReplaceAll(key, "_", "-")))
	}
	bindConfig("sweep.namespaces", flags.Lookup("sweep-namespaces"))
	bindConfig("sweep.max_age", flags.Lookup("sweep-max-age"))
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

func openMeta(path string) (meta.Store, error) {
	if path == "" {
		return meta.NewMemoryStore(""), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return meta.NewBoltStore(meta.BoltConfig{Path: path})
}

func buildStore() (blob.Store, error) {
	primary, err := buildBlobStore(viper.GetString("storage_provider"), storageOptions{
		Root:         viper.GetString("root"),
		Endpoint:     viper.GetString("storage_endpoint"),
		Bucket:       viper.GetString("storage_bucket"),
		Region:       viper.GetString("storage_region"),
		AccessKey:    viper.GetString("storage_access_key"),
		SecretKey:    viper.GetString("storage_secret_key"),
		SessionToken: viper.GetString("storage_session_token"),
	})
	if err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	prov := viper.GetString("mirror_provider")
	if prov == "" {
		return primary, nil
	}
	secondary, err := buildBlobStore(prov, storageOptions{
		Root:         viper.GetString("root") + ".mirror",
		Endpoint:     viper.GetString("mirror_endpoint"),
		Bucket:       viper.GetString("mirror_bucket"),
		Region:       viper.GetString("mirror_region"),
		AccessKey:    viper.GetString("mirror_access_key"),
		SecretKey:    viper.GetString("mirror_secret_key"),
		SessionToken: viper.GetString("mirror_session_token"),
	})
	if err != nil {
		return nil, fmt.Errorf("mirror storage config: %w", err)
	}
	return blob.NewHybridStore(primary, secondary, blob.HybridOptions{
		MirrorSecondary: viper.GetBool("mirror_writes"),
		CacheOnRead:     viper.GetBool("mirror_cache_read"),
	})
}

type storageOptions struct {
	Root         string
	Endpoint     string
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string
}

func buildBlobStore(provider string, opts storageOptions) (blob.Store, error) {
	remote := blob.RemoteConfig{
		Endpoint:     opts.Endpoint,
		Bucket:       opts.Bucket,
		CacheEntries: 1024,
		CacheTTL:     time.Minute,
	}
	switch strings.ToLower(provider) {
	case "", "local":
		if opts.Root == "" {
			return nil, errors.New("local storage requires a root directory")
		}
		return blob.NewPathStore(opts.Root)
	case "s3":
		if opts.Endpoint == "" || opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" || opts.Region == "" {
			return nil, errors.New("s3 config requires endpoint, bucket, region, access key, and secret key")
		}
		return blob.NewS3Store(blob.S3Config{
			RemoteConfig: remote,
			Region:       opts.Region,
			AccessKey:    opts.AccessKey,
			SecretKey:    opts.SecretKey,
			SessionToken: opts.SessionToken,
		})
	case "oss":
		if opts.Endpoint == "" || opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" {
			return nil, errors.New("oss config requires endpoint, bucket, access key, and secret key")
		}
		return blob.NewOSSStore(blob.OSSConfig{RemoteConfig: remote, AccessKey: opts.AccessKey, SecretKey: opts.SecretKey})
	case "cos":
		if opts.Endpoint == "" || opts.Bucket == "" || opts.AccessKey == "" || opts.SecretKey == "" {
			return nil, errors.New("cos config requires endpoint, bucket, access key, and secret key")
		}
		return blob.NewCOSStore(blob.COSConfig{RemoteConfig: remote, AccessKey: opts.AccessKey, SecretKey: opts.SecretKey})
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

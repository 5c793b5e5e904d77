package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tokenizerd/internal/config"
	"tokenizerd/internal/httpapi"
	"tokenizerd/internal/logging"
	"tokenizerd/internal/registry"
	"tokenizerd/internal/tokenizer"
)

// version is overridden at link time with -ldflags "-X main.version=...".
var version = "1.0.0"

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newRootCmd(os.LookupEnv).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tokenizerd:", err)
		os.Exit(1)
	}
}

func newRootCmd(lookup func(string) (string, bool)) *cobra.Command {
	def := config.Defaults()
	root := &cobra.Command{
		Use:           "tokenizerd",
		Short:         "HTTP token counting service backed by a lazy tokenizer registry",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, lookup)
			if err != nil {
				return err
			}
			log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
			if err != nil {
				return err
			}
			defer closer.Close()
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	f := root.Flags()
	f.StringP("config", "c", "", "Config file (.yaml, .yml, .json, .toml)")
	f.String("addr", def.Addr, "HTTP listen address (env TOKENIZERD_ADDR or PORT)")
	f.String("default-model", def.DefaultModel, "Tokenizer used for unknown or unloaded names")
	f.StringSlice("preload", nil, "Tokenizers loaded before serving (env PRELOAD_TOKENIZERS)")
	f.Int("workers", def.Workers, "Background construction workers")
	f.Bool("tiktoken-offline", def.TiktokenOffline, "Use embedded tiktoken ranks instead of downloading them")
	f.String("tokenizer-dir", def.TokenizerDir, "Directory scanned for <org>/<name>/tokenizer.json files")
	f.String("hub-endpoint", def.HubEndpoint, "Hugging Face compatible hub endpoint")
	f.String("hub-revision", "", "Hub revision (default main)")
	f.Bool("hub-disabled", def.HubDisabled, "Never contact the hub")
	f.Float64("hub-rate-limit", def.HubRateLimit, "Hub requests per second (0 = unlimited)")
	f.String("cache-dir", def.CacheDir, "On-disk cache for downloaded vocabularies")
	f.Int64("max-body-bytes", def.MaxBodyBytes, "Maximum request body size")
	f.StringSlice("cors-origins", nil, "Enable CORS for these origins")
	f.String("log-level", def.LogLevel, "Log level: debug|info|warn|error")
	f.String("log-format", def.LogFormat, "Log format: json|console")
	f.String("log-file", "", "Write logs to a rotated file instead of stderr")
	f.String("http-log-level", def.HTTPLogLevel, "Default per-request log level: off|error|info|debug")
	return root
}

// resolveConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func resolveConfig(cmd *cobra.Command, lookup func(string) (string, bool)) (config.Config, error) {
	f := cmd.Flags()
	cfg := config.Defaults()
	if path, _ := f.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return cfg, err
	}

	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("addr", &cfg.Addr)
	str("default-model", &cfg.DefaultModel)
	str("tokenizer-dir", &cfg.TokenizerDir)
	str("hub-endpoint", &cfg.HubEndpoint)
	str("hub-revision", &cfg.HubRevision)
	str("cache-dir", &cfg.CacheDir)
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("log-file", &cfg.LogFile)
	str("http-log-level", &cfg.HTTPLogLevel)
	if f.Changed("preload") {
		cfg.Preload, _ = f.GetStringSlice("preload")
	}
	if f.Changed("workers") {
		cfg.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("tiktoken-offline") {
		cfg.TiktokenOffline, _ = f.GetBool("tiktoken-offline")
	}
	if f.Changed("hub-disabled") {
		cfg.HubDisabled, _ = f.GetBool("hub-disabled")
	}
	if f.Changed("hub-rate-limit") {
		cfg.HubRateLimit, _ = f.GetFloat64("hub-rate-limit")
	}
	if f.Changed("max-body-bytes") {
		cfg.MaxBodyBytes, _ = f.GetInt64("max-body-bytes")
	}
	if f.Changed("cors-origins") {
		cfg.CORS.Origins, _ = f.GetStringSlice("cors-origins")
		cfg.CORS.Enabled = len(cfg.CORS.Origins) > 0
	}
	return cfg, cfg.Validate()
}

// buildProviders returns the providers in probe order: family A first.
func buildProviders(cfg config.Config, log zerolog.Logger) ([]tokenizer.Provider, error) {
	var hub *tokenizer.HubClient
	if !cfg.HubDisabled {
		var err error
		hub, err = tokenizer.NewHubClient(tokenizer.HubConfig{
			Endpoint:  cfg.HubEndpoint,
			Token:     cfg.HubToken,
			Revision:  cfg.HubRevision,
			CacheDir:  cfg.CacheDir,
			RateLimit: cfg.HubRateLimit,
			Timeout:   time.Duration(cfg.HubTimeoutSec) * time.Second,
			Logger:    log.With().Str("component", "hub").Logger(),
		})
		if err != nil {
			return nil, err
		}
	}
	hf, err := tokenizer.NewHubProvider(hub, cfg.TokenizerDir, log.With().Str("component", "hub_provider").Logger())
	if err != nil {
		return nil, err
	}
	return []tokenizer.Provider{tokenizer.NewTiktokenProvider(cfg.TiktokenOffline), hf}, nil
}

func configureHTTP(cfg config.Config, log zerolog.Logger) {
	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetRequestLogLevel(cfg.HTTPLogLevel)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers)
	httpapi.SetServiceInfo("tokenizerd", version)
}

// run serves until ctx is cancelled, then drains HTTP and stops the workers.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	providers, err := buildProviders(cfg, log)
	if err != nil {
		return err
	}
	log.Info().Str("default", cfg.DefaultModel).Str("preload", strings.Join(cfg.Preload, ",")).Int("workers", cfg.Workers).Msg("starting registry")
	reg, err := registry.New(ctx, registry.Config{
		Providers:    providers,
		DefaultModel: cfg.DefaultModel,
		Preload:      cfg.Preload,
		Workers:      cfg.Workers,
		Logger:       log.With().Str("component", "registry").Logger(),
	})
	if err != nil {
		return err
	}

	configureHTTP(cfg, log)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("tokenizerd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errc:
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	if err := reg.Close(sctx); err != nil {
		log.Warn().Err(err).Msg("registry close error")
	}
	log.Info().Msg("tokenizerd stopped")
	return serveErr
}

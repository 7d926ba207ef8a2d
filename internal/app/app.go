// Package app wires all teacherAI subsystems into a running HTTP service.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject implementations via functional options
// (WithProgressStore, WithMetrics, etc.). When an option is not provided,
// New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nclamvn/teacherAI/internal/api"
	"github.com/nclamvn/teacherAI/internal/config"
	"github.com/nclamvn/teacherAI/internal/health"
	"github.com/nclamvn/teacherAI/internal/media"
	"github.com/nclamvn/teacherAI/internal/observe"
	"github.com/nclamvn/teacherAI/internal/progress"
	"github.com/nclamvn/teacherAI/internal/progress/filestore"
	"github.com/nclamvn/teacherAI/internal/progress/postgres"
	"github.com/nclamvn/teacherAI/internal/speaking"
	"github.com/nclamvn/teacherAI/pkg/provider/tts"
)

// App owns all subsystem lifetimes and serves the speaking API.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics  *observe.Metrics
	logLevel *slog.LevelVar

	// Subsystems, initialised in New.
	progress progress.Store
	media    *media.Store
	service  *speaking.Service
	handler  http.Handler

	server *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithProgressStore injects a progress store instead of creating one from
// config.
func WithProgressStore(s progress.Store) Option {
	return func(a *App) { a.progress = s }
}

// WithMetrics overrides the metrics sink (default [observe.DefaultMetrics]).
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel lets ApplyConfig adjust the level of the process logger.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.logLevel = lv }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via [BuildProviders]). Nil providers are
// allowed: without STT only text scoring works, without LLM feedback is
// rule-based and without TTS no audio is attached.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Progress store ────────────────────────────────────────────────
	if err := a.initProgress(ctx); err != nil {
		return nil, fmt.Errorf("app: init progress: %w", err)
	}

	// ── 2. Media store ───────────────────────────────────────────────────
	store, err := media.NewStore(cfg.Media.Dir, cfg.Media.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("app: init media: %w", err)
	}
	a.media = store

	// ── 3. Speaking service ──────────────────────────────────────────────
	if err := a.initService(); err != nil {
		return nil, fmt.Errorf("app: init speaking service: %w", err)
	}

	// ── 4. HTTP routes ───────────────────────────────────────────────────
	a.initHandler()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initProgress opens PostgreSQL when a DSN is set, otherwise the attempts
// file. With neither, attempts are not recorded.
func (a *App) initProgress(ctx context.Context) error {
	if a.progress != nil {
		return nil
	}
	switch st := a.cfg.Storage; {
	case st.PostgresDSN != "":
		pg, err := postgres.NewStore(ctx, st.PostgresDSN)
		if err != nil {
			return err
		}
		a.progress = pg
		a.closers = append(a.closers, func() error {
			pg.Close()
			return nil
		})
		slog.Info("progress store ready", "backend", "postgres")
	case st.AttemptsFile != "":
		fs := filestore.New(st.AttemptsFile, filestore.WithPhrasesFile(st.PhrasesFile))
		a.progress = fs
		slog.Info("progress store ready", "backend", "file", "path", fs.Path(), "phrases", fs.PhrasesPath())
	}
	return nil
}

// initService builds the scoring pipeline and the speaking service.
func (a *App) initService() error {
	p, err := BuildPipeline(a.cfg, a.providers.LLM)
	if err != nil {
		return err
	}

	opts := []speaking.Option{speaking.WithMetrics(a.metrics)}
	if a.progress != nil {
		opts = append(opts, speaking.WithProgress(a.progress))
	}
	if a.providers.TTS != nil {
		opts = append(opts, speaking.WithSpeaker(media.NewCachedSynthesizer(
			a.media,
			a.providers.TTS,
			media.WithLookupHook(a.metrics.RecordCacheLookup),
		)))
		if vl, ok := a.providers.TTS.(tts.VoiceLister); ok {
			opts = append(opts, speaking.WithVoiceLister(vl))
		}
	}

	a.service = speaking.New(a.providers.STT, p, opts...)
	return nil
}

// initHandler registers every route on a fresh mux and wraps it in the
// CORS and telemetry middleware.
func (a *App) initHandler() {
	mux := http.NewServeMux()

	health.New(a.checkers()...).Register(mux)

	var apiOpts []api.Option
	if mb := a.cfg.Server.MaxUploadMB; mb > 0 {
		apiOpts = append(apiOpts, api.WithMaxUploadBytes(int64(mb)<<20))
	}
	api.New(a.service, apiOpts...).Register(mux)
	media.NewHandler(a.media).Register(mux)
	mux.Handle("GET /metrics", observe.MetricsHandler())

	a.handler = observe.Middleware(a.metrics)(api.CORS(a.cfg.Server.FrontendURL)(mux))
}

// checkers lists the readiness checks for the configured subsystems. The
// transcriber is required; feedback and speech only degrade the service.
func (a *App) checkers() []health.Checker {
	cs := []health.Checker{health.DirWritable("media", a.media.Dir())}
	if a.progress != nil {
		cs = append(cs, health.PingChecker("progress", a.progress))
	}
	if ph, ok := a.providers.STT.(health.ProviderHealth); ok {
		cs = append(cs, health.ProvidersChecker("stt", ph, false))
	}
	if ph, ok := a.providers.LLM.(health.ProviderHealth); ok {
		cs = append(cs, health.ProvidersChecker("llm", ph, true))
	}
	if ph, ok := a.providers.TTS.(health.ProviderHealth); ok {
		cs = append(cs, health.ProvidersChecker("tts", ph, true))
	}
	return cs
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the speaking service.
func (a *App) Service() *speaking.Service { return a.service }

// ─── Reconfiguration ─────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable parts of next. Scoring and feedback
// changes swap the pipeline without dropping in-flight requests; log level
// changes take effect when the App was built with [WithLogLevel]. Other
// sections are logged by the watcher and need a restart.
func (a *App) ApplyConfig(old, next *config.Config) {
	d := config.Diff(old, next)

	if d.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if !d.HotReload() {
		return
	}
	// The pipeline only reads the scoring and feedback sections.
	p, err := BuildPipeline(next, a.providers.LLM)
	if err != nil {
		slog.Error("config reload rejected", "err", err)
		return
	}
	a.service.SetPipeline(p)
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured address and blocks until ctx is
// cancelled or the listener fails. On cancellation the server is drained
// within the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if t := a.cfg.Server.TLS; t != nil {
			slog.Info("http server listening", "addr", a.server.Addr, "tls", true)
			err = a.server.ListenAndServeTLS(t.CertFile, t.KeyFile)
		} else {
			slog.Info("http server listening", "addr", a.server.Addr)
			err = a.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	}
	<-errCh
	return ctx.Err()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

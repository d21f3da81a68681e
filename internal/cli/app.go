package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bulkedge/edgeadmin/internal/catalog"
	"github.com/bulkedge/edgeadmin/internal/config"
	"github.com/bulkedge/edgeadmin/internal/logstream"
	"github.com/bulkedge/edgeadmin/internal/observability"
	"github.com/bulkedge/edgeadmin/internal/present"
	"github.com/bulkedge/edgeadmin/internal/ratelimit"
	"github.com/bulkedge/edgeadmin/internal/session"
	"github.com/bulkedge/edgeadmin/internal/submit"
	"github.com/bulkedge/edgeadmin/internal/transport"
)

// app is the wired client for one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	catalog *catalog.Catalog
	render  *present.Renderer

	store  *session.Store
	submit *submit.Client
	logs   *logstream.Client

	closers []func(context.Context) error
}

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "configuration", err)
	}
	if opts.APIBase != "" {
		cfg.APIBase = opts.APIBase
	}
	if opts.Catalog != "" {
		cfg.CatalogPath = opts.Catalog
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, WrapExitError(ExitCommandError, "configuration", err)
	}
	return cfg, nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	var (
		cat *catalog.Catalog
		err error
	)
	if path == "" {
		cat, err = catalog.Default()
	} else {
		cat, err = catalog.LoadFile(path)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load catalog", err)
	}
	return cat, nil
}

// newBase sets up everything except the backend clients. Commands that do
// not talk to the backend stop here.
func newBase(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*app, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := observability.InitLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	}, opts.Stderr, cmd.CommandPath())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "configure logging", err)
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func(context.Context) error { return logCloser.Close() })

	if cfg.OTelEnabled {
		shutdown, err := observability.InitTracer(ctx, observability.TracerConfig{
			ServiceName: "edgeadmin",
			Endpoint:    cfg.TraceEndpoint,
			SampleRatio: cfg.TraceSampleRatio,
		}, logger)
		if err != nil {
			a.close()
			return nil, WrapExitError(ExitFailure, "init tracing", err)
		}
		a.closers = append(a.closers, shutdown)
	}

	if a.metrics, err = observability.NewMetrics(); err != nil {
		a.close()
		return nil, WrapExitError(ExitFailure, "init metrics", err)
	}
	if a.catalog, err = loadCatalog(cfg.CatalogPath); err != nil {
		a.close()
		return nil, err
	}
	a.render = present.New(opts.Stdout, present.Format(opts.Format), useColor(opts))
	return a, nil
}

// newApp wires the backend clients on top of newBase. Auth and operation
// requests share one cookie jar with the log stream client, which has no
// timeout since its response never ends on its own.
func newApp(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (*app, error) {
	a, err := newBase(ctx, cmd, opts)
	if err != nil {
		return nil, err
	}
	if err := a.wire(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire() error {
	jar, err := transport.NewJar()
	if err != nil {
		return err
	}
	limiter := ratelimit.NewLimiter(ratelimit.ClassRates{API: a.cfg.APIRate, Auth: a.cfg.AuthRate})

	apiClient, err := transport.New(transport.Options{
		Timeout: a.cfg.RequestTimeout,
		Limiter: limiter,
		Tracing: a.cfg.OTelEnabled,
		Logger:  a.logger,
		Jar:     jar,
	})
	if err != nil {
		return err
	}
	streamClient, err := transport.New(transport.Options{
		Limiter: limiter,
		Tracing: a.cfg.OTelEnabled,
		Logger:  a.logger,
		Jar:     jar,
	})
	if err != nil {
		return err
	}
	return a.wireClients(apiClient, streamClient)
}

func (a *app) wireClients(apiClient, streamClient *http.Client) error {
	auth, err := session.NewHTTPAuth(a.cfg.APIBase, apiClient)
	if err != nil {
		return WrapExitError(ExitCommandError, "configure auth", err)
	}
	a.store = session.NewStore(auth, a.logger, session.WithMetrics(a.metrics))

	if a.submit, err = submit.New(a.cfg.APIBase, a.catalog, apiClient,
		submit.WithLogger(a.logger), submit.WithMetrics(a.metrics)); err != nil {
		return WrapExitError(ExitCommandError, "configure submit", err)
	}
	if a.logs, err = logstream.New(a.cfg.APIBase, streamClient,
		logstream.WithLogger(a.logger), logstream.WithMetrics(a.metrics)); err != nil {
		return WrapExitError(ExitCommandError, "configure log stream", err)
	}
	return nil
}

// authenticate runs the login flow until the session is authenticated.
func (a *app) authenticate(ctx context.Context, p session.Prompter) (session.Session, error) {
	sess, err := session.Flow{Store: a.store, Prompter: p}.Ensure(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return sess, err
		}
		return sess, WrapExitError(ExitFailure, "login", err)
	}
	return sess, nil
}

func (a *app) close() {
	ctx := context.Background()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil && a.logger != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
	a.closers = nil
}

func useColor(opts *RootOptions) bool {
	if opts.NoColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(opts.Stdout)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}


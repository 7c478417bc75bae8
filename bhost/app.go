package bhost

import (
	"context"
	"net/http"

	"go.uber.org/fx"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	PipelineConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection.
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// WithService overrides the service unit of the manifest.
func WithService(ref string) Option {
	return func(c *AppConfig) {
		c.PipelineConfig.Service = ref
	}
}

// WithMiddleware overrides the middleware units of the manifest, outermost first.
func WithMiddleware(refs ...string) Option {
	return func(c *AppConfig) {
		c.PipelineConfig.Middleware = refs
	}
}

func newConfig(opts ...Option) AppConfig {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// coreOptions provide everything needed to run exchanges, without a server.
func coreOptions[E Environment](cfg AppConfig) []fx.Option {
	return []fx.Option{
		fx.NopLogger,
		fx.Provide(ParseEnv[E]()),
		fx.Provide(func(e E) Environment { return e }),
		fx.Provide(provideLogger),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewHTTPTransport),
		fx.Provide(NewMetrics),
		fx.Provide(NewRegistry),
		fx.Supply(cfg.PipelineConfig),
		fx.Provide(ResolveManifest),
		fx.Provide(NewPipeline),
		fx.Provide(NewRunner),
	}
}

// FxOptions returns the full DI graph of a serving app. [NewApp] and bhosttest build on it.
func FxOptions[E Environment](opts ...Option) []fx.Option {
	cfg := newConfig(opts...)

	all := coreOptions[E](cfg)
	all = append(all,
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewServer),
		fx.Invoke(startServerHook),
	)

	return append(all, cfg.FxOptions...)
}

// NewApp creates a host that serves the configured pipeline over HTTP.
//
// Example:
//
//	bhost.NewApp[bhost.BaseEnvironment](
//	    bhost.WithMiddleware("logging:mdlA", "forward"),
//	    bhost.WithService("echo"),
//	).Run()
func NewApp[E Environment](opts ...Option) *App {
	return &App{app: fx.New(FxOptions[E](opts...)...)}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application with the given context and stops it once ctx is done.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}

// Invoke builds the host without a server, calls fn with its dependencies and shuts the host down again.
// It is how one-shot exchanges run.
func Invoke[E Environment](ctx context.Context, fn any, opts ...Option) error {
	cfg := newConfig(opts...)

	all := append(coreOptions[E](cfg), cfg.FxOptions...)
	app := fx.New(append(all, fx.Invoke(fn))...)

	if err := app.Start(ctx); err != nil {
		return err
	}

	return app.Stop(context.WithoutCancel(ctx))
}

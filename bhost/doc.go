// Package bhost hosts a bpipe pipeline as a process: it reads its configuration from the environment,
// composes the pipeline from unit references and serves it over HTTP, or runs single exchanges for
// command line use.
//
// # Configuration
//
// Embed [BaseEnvironment] in an environment struct to add application variables:
//
//	type Env struct {
//	    bhost.BaseEnvironment
//	    UpstreamURL string `env:"UPSTREAM_URL,required"`
//	}
//
// The pipeline comes from BP_MIDDLEWARE and BP_SERVICE, or from a TOML manifest named by BP_MANIFEST:
//
//	[pipeline]
//	middleware = ["logging:mdlA", "forward", "logging:mdlB"]
//	service = "validator"
//
// # Serving
//
// [NewApp] wires everything with fx and serves on BP_PORT:
//
//	bhost.NewApp[Env]().Run()
//
// Besides the pipeline, the server answers /healthz and /metrics. Requests are traced with OpenTelemetry
// and every pipeline stage gets a span and prometheus measurements.
//
// # Logging
//
// Inside a stage, [Log] returns a zap logger that carries the exchange id and, when tracing is enabled,
// the trace and span ids:
//
//	bhost.Log(ctx).Info("validating")
//
// # One-shot Exchanges
//
// [Invoke] builds the same graph without a server. Combined with [Exchange] it runs a single request:
//
//	err := bhost.Invoke[bhost.BaseEnvironment](ctx, func(logs *zap.Logger, r *bpipe.Runner) error {
//	    res, err := bhost.Exchange(ctx, logs, r, bhost.EchoInbound())
//	    ...
//	})
package bhost

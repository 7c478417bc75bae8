package bhost

import (
	"net/http"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/unit"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// PipelineParams holds the dependencies for composing the served pipeline.
type PipelineParams struct {
	fx.In

	Manifest   Manifest
	Registry   *unit.Registry
	TracerProv trace.TracerProvider
	Metrics    *Metrics
}

// NewRegistry creates the unit registry. Remote units go through the instrumented transport.
func NewRegistry(logger *zap.Logger, transport http.RoundTripper) *unit.Registry {
	return unit.NewRegistry(logger, transport)
}

// NewPipeline loads the units the manifest refers to and composes them. Every stage is traced and
// measured.
func NewPipeline(params PipelineParams) (*bpipe.Pipeline, error) {
	b := bpipe.NewBuilder(
		bpipe.WithInstrument(TraceStages(params.TracerProv)),
		bpipe.WithInstrument(params.Metrics.Instrument()),
	)

	for _, ref := range params.Manifest.Pipeline.Middleware {
		mw, err := params.Registry.Middleware(ref)
		if err != nil {
			return nil, err
		}

		b.Use(ref, mw)
	}

	svc, err := params.Registry.Service(params.Manifest.Pipeline.Service)
	if err != nil {
		return nil, err
	}

	return b.Build(svc), nil
}

// NewRunner creates the bridge that drives the pipeline for each exchange.
func NewRunner(p *bpipe.Pipeline, m Manifest, logger *zap.Logger, metrics *Metrics) *bpipe.Runner {
	return bpipe.NewRunner(p, metrics.Logger(newZapBPipeLogger(logger)),
		bpipe.WithCapacity(lo.FromPtrOr(m.Pipeline.Capacity, bpipe.DefaultCapacity)))
}

package bpipe

import (
	"context"
	"slices"
)

// TerminalStage is the stage name reported for the terminal handler.
const TerminalStage = "service"

// StageInstrument wraps a single stage of a pipeline, e.g. to trace or measure it.
type StageInstrument func(stage string, h Handler) Handler

// BuilderOption configures a [Builder].
type BuilderOption func(*Builder)

// WithInstrument adds an instrument that is applied to every stage. Instruments given first end up outermost
// around each stage.
func WithInstrument(fn StageInstrument) BuilderOption {
	return func(b *Builder) {
		b.instruments = append(b.instruments, fn)
	}
}

type stage struct {
	name string
	mw   Middleware
}

// Builder composes named middleware around a terminal handler.
type Builder struct {
	instruments []StageInstrument
	stages      []stage
	built       bool
}

// NewBuilder inits a pipeline builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// Use appends middleware to the pipeline. The first middleware used is the outermost.
func (b *Builder) Use(name string, mw Middleware) *Builder {
	b.ensureNoUseAfterBuild()
	b.stages = append(b.stages, stage{name: name, mw: mw})

	return b
}

// Build folds the middleware right-to-left around the terminal handler. The builder cannot be used after.
func (b *Builder) Build(terminal Handler) *Pipeline {
	b.built = true

	p := &Pipeline{names: make([]string, 0, len(b.stages)+1)}

	wrapped := b.instrument(TerminalStage, terminal)
	for i := len(b.stages) - 1; i >= 0; i-- {
		wrapped = b.instrument(b.stages[i].name, b.stages[i].mw(wrapped))
	}

	for _, s := range b.stages {
		p.names = append(p.names, s.name)
	}

	p.names = append(p.names, TerminalStage)
	p.composed = wrapped

	return p
}

func (b *Builder) instrument(name string, h Handler) Handler {
	for i := len(b.instruments) - 1; i >= 0; i-- {
		h = b.instruments[i](name, h)
	}

	return h
}

func (b *Builder) ensureNoUseAfterBuild() {
	if b.built {
		panic("bpipe: cannot call Use() after calling Build")
	}
}

// Pipeline is a fixed composition of middleware and a terminal handler. It holds no per-request state and is
// safe for concurrent use when its stages are.
type Pipeline struct {
	names    []string
	composed Handler
}

// Handle implements [Handler] by invoking the outermost stage.
func (p *Pipeline) Handle(ctx context.Context, r *Request) (*Response, error) {
	return p.composed.Handle(ctx, r)
}

// Stages returns the stage names from outermost to the terminal handler.
func (p *Pipeline) Stages() []string {
	return slices.Clone(p.names)
}

// Package unit loads handler units: independently built stages that expose nothing but the handler contract.
//
// A unit is referred to by a reference string. Plain names select a registered unit, "name:arg" passes an
// argument to its factory and an http(s) URL selects a remote unit served by another process:
//
//	logging:mdlA          // middleware, labelled "mdlA"
//	forward               // middleware
//	echo                  // service
//	http://10.0.0.2:8080  // service, remote
//
// Every loaded unit is isolated: a panic inside it becomes an internal error for that exchange.
package unit

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/advdv/bpipe"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// MiddlewareFactory creates a middleware unit from the argument in its reference.
type MiddlewareFactory func(arg string) (bpipe.Middleware, error)

// ServiceFactory creates a terminal unit from the argument in its reference.
type ServiceFactory func(arg string) (bpipe.Handler, error)

// Registry resolves unit references.
type Registry struct {
	transport http.RoundTripper

	mu         sync.RWMutex
	middleware map[string]MiddlewareFactory
	services   map[string]ServiceFactory
}

// NewRegistry inits a registry with the built-in units. Remote units use transport, or the default
// transport when it is nil.
func NewRegistry(logs *zap.Logger, transport http.RoundTripper) *Registry {
	if logs == nil {
		logs = zap.NewNop()
	}

	if transport == nil {
		transport = http.DefaultTransport
	}

	r := &Registry{
		transport:  transport,
		middleware: map[string]MiddlewareFactory{},
		services:   map[string]ServiceFactory{},
	}

	registerBuiltins(r, logs.Named("unit"))

	return r
}

// RegisterMiddleware adds or replaces a middleware unit.
func (r *Registry) RegisterMiddleware(name string, f MiddlewareFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.middleware[name] = f
}

// RegisterService adds or replaces a service unit.
func (r *Registry) RegisterService(name string, f ServiceFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.services[name] = f
}

// Middleware loads the middleware unit ref refers to.
func (r *Registry) Middleware(ref string) (bpipe.Middleware, error) {
	name, arg := splitRef(ref)

	r.mu.RLock()
	f, ok := r.middleware[name]
	known := sortedKeys(r.middleware)
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf("no middleware unit named: %q, got: %v", name, known) //nolint:goerr113
	}

	mw, err := f(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "load middleware unit %q", ref)
	}

	return func(next bpipe.Handler) bpipe.Handler {
		return Isolate(ref, mw(next))
	}, nil
}

// Service loads the service unit ref refers to. An http or https URL loads a remote unit.
func (r *Registry) Service(ref string) (bpipe.Handler, error) {
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return Isolate(ref, Remote(u, r.transport)), nil
	}

	name, arg := splitRef(ref)

	r.mu.RLock()
	f, ok := r.services[name]
	known := sortedKeys(r.services)
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Newf("no service unit named: %q, got: %v", name, known) //nolint:goerr113
	}

	h, err := f(arg)
	if err != nil {
		return nil, errors.Wrapf(err, "load service unit %q", ref)
	}

	return Isolate(ref, h), nil
}

// Isolate runs h as an opaque unit. A panic inside the unit fails the exchange with an internal error
// instead of unwinding into the stage that called it.
func Isolate(name string, h bpipe.Handler) bpipe.Handler {
	return bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (resp *bpipe.Response, err error) {
		defer func() {
			if e := recover(); e != nil {
				resp, err = nil, bpipe.Errorf(bpipe.CodeInternalServerError, "unit %q panicked: %v", name, e)
			}
		}()

		return h.Handle(ctx, r)
	})
}

func splitRef(ref string) (name, arg string) {
	name, arg, _ = strings.Cut(ref, ":")
	return name, arg
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	slices.Sort(keys)

	return keys
}

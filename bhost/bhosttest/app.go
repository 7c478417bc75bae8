// Package bhosttest provides test helpers for bhost applications.
//
// It constructs the identical DI graph as [bhost.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	bhosttest.SetBaseEnv(t, 18181).Middleware("logging:mdlA").Service("echo")
//	app := bhosttest.New[bhost.BaseEnvironment](t)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package bhosttest

import (
	"testing"

	"github.com/advdv/bpipe/bhost"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing bhost applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [bhost.NewApp].
func New[E bhost.Environment](t testing.TB, opts ...bhost.Option) *App {
	return &App{App: fxtest.New(t, bhost.FxOptions[E](opts...)...)}
}

package bhost_test

import (
	"net/http"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bhost"
	"github.com/advdv/bpipe/bhost/bhosttest"
	"github.com/advdv/bpipe/validate"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exchange(t *testing.T, in bpipe.Inbound, opts ...bhost.Option) (*bhost.Result, error) {
	t.Helper()

	var (
		res  *bhost.Result
		xerr error
	)

	require.NoError(t, bhost.Invoke[bhost.BaseEnvironment](t.Context(), func(logs *zap.Logger, r *bpipe.Runner) {
		res, xerr = bhost.Exchange(t.Context(), logs, r, in)
	}, opts...))

	return res, xerr
}

func TestExchange_Echo(t *testing.T) {
	bhosttest.SetBaseEnv(t, 18130).Middleware("logging:mdlA", "forward", "logging:mdlB")

	res, err := exchange(t, bhost.EchoInbound())
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.Status())
	require.Equal(t, "hello", res.Header().Get("X-Test"))
	require.Equal(t, bhost.EchoBody, res.Body())
	require.Equal(t, bpipe.Header{"X-Trailer": {"test"}}, res.Trailers())
}

func TestExchange_Failure(t *testing.T) {
	bhosttest.SetBaseEnv(t, 18131).Middleware("logging:mdlA")

	res, err := exchange(t, bhost.EchoInbound(), bhost.WithService("fail"))
	require.Equal(t, bpipe.CodeInternalServerError, bpipe.CodeOf(err))
	require.Equal(t, http.StatusInternalServerError, res.Status())
	require.Equal(t, "Internal Server Error\n", res.Body())
	require.Nil(t, res.Trailers())
}

func TestExchange_Validate(t *testing.T) {
	bhosttest.SetBaseEnv(t, 18132)

	res, err := exchange(t, bhost.TextInbound("Hello World"), bhost.WithService("validator"))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.Status())
	require.Equal(t, "VALID: Hello World", res.Body())

	res, err = exchange(t, bhost.TextInbound("Hello, World!"), bhost.WithService("validator"), bhost.WithMiddleware())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnprocessableEntity, res.Status())
	require.Equal(t, validate.InvalidMessage, res.Body())
}

func TestInvoke_UnknownUnit(t *testing.T) {
	bhosttest.SetBaseEnv(t, 18133).Middleware("bogus")

	err := bhost.Invoke[bhost.BaseEnvironment](t.Context(), func(*bpipe.Runner) {})
	require.ErrorContains(t, err, `no middleware unit named: "bogus"`)
}

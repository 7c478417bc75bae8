package unit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bpipetest"
	"github.com/advdv/bpipe/unit"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteForwardsToServedPipeline(t *testing.T) {
	paths := make(chan string, 1)
	inner := unit.Echo(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.RequestURI()
		bpipe.ToStd(inner, bpipe.NewTestLogger(t)).ServeHTTP(w, r)
	}))
	defer srv.Close()

	reg := unit.NewRegistry(nil, srv.Client().Transport)
	h, err := reg.Service(srv.URL + "/base")
	require.NoError(t, err)

	sink := newRemoteRun(t, h, "/items?a=1", bpipe.Header{"X-Test": {"hello"}}, "Hello from the HTTP P3 runner!")

	require.Equal(t, "/base/items?a=1", <-paths)
	require.Equal(t, http.StatusOK, sink.Status())
	require.Equal(t, "hello", sink.Header().Get("X-Test"))
	require.Equal(t, "Hello from the HTTP P3 runner!", sink.Body())
}

func TestRemoteKeepsNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(bpipe.ToStd(unit.Validator(), bpipe.NewTestLogger(t)))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	sink := newRemoteRun(t, unit.Remote(u, nil), "/", nil, "not valid!")
	require.Equal(t, http.StatusUnprocessableEntity, sink.Status())
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	srv.Close()

	resp, err := unit.Remote(u, nil).Handle(t.Context(),
		bpipe.NewRequest(http.MethodGet, &url.URL{Path: "/"}, nil, bpipe.EmptyBody()))
	require.Nil(t, resp)
	require.Equal(t, bpipe.CodeBadGateway, bpipe.CodeOf(err))
}

func newRemoteRun(t *testing.T, h bpipe.Handler, target string, hdr bpipe.Header, body string) *bpipetest.Sink {
	t.Helper()

	u, err := url.Parse(target)
	require.NoError(t, err)

	sink, err := run(t, bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
		r.URL = u
		return h.Handle(ctx, r)
	}), hdr, bpipe.DataFrame([]byte(body)))
	require.NoError(t, err)

	return sink
}

func TestRemoteEmptyResponseIsNotAGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	h := unit.Remote(u, srv.Client().Transport)
	for range 50 {
		resp, err := h.Handle(t.Context(),
			bpipe.NewRequest(http.MethodGet, &url.URL{Path: "/"}, nil, bpipe.EmptyBody()))
		require.NoError(t, err)
		require.Equal(t, http.StatusNoContent, resp.Status)
	}
}

package unit

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/advdv/bpipe"
	"github.com/carlmjohnson/requests"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const remoteChunkSize = 32 * 1024

type remote struct {
	target    *url.URL
	transport http.RoundTripper
}

// Remote returns a unit that forwards each request to target and streams the response back. The request
// path and query are resolved against the target. Failing to reach the target fails the exchange with a bad
// gateway error; a response body that breaks off mid-way ends the response body abruptly.
func Remote(target *url.URL, transport http.RoundTripper) bpipe.Handler {
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &remote{target: target, transport: transport}
}

type remoteHead struct {
	status int
	header http.Header
}

func (u *remote) Handle(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
	cons, err := r.Body.Consume()
	if err != nil {
		return nil, err
	}

	dst := u.target.JoinPath(r.URL.Path)
	dst.RawQuery = r.URL.RawQuery

	// filled in by the request body copy before it reports end of body
	trailers := http.Header{}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(copyRequestBody(ctx, cons, pw, trailers))
	}()

	prod, body := bpipe.NewChannel(bpipe.DefaultCapacity)
	heads := make(chan remoteHead, 1)
	errc := make(chan error, 1)

	rb := requests.URL(dst.String()).
		Method(r.Method).
		BodyReader(pr).
		Transport(requests.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
			req.Trailer = trailers
			return u.transport.RoundTrip(req)
		})).
		AddValidator(func(*http.Response) error { return nil }).
		Handle(func(res *http.Response) error {
			heads <- remoteHead{status: res.StatusCode, header: res.Header.Clone()}
			return pumpResponse(ctx, res, prod)
		})

	for k, vs := range r.Header {
		rb.Header(k, vs...)
	}

	go func() {
		err := rb.Fetch(ctx)
		pr.CloseWithError(errors.New("remote exchange finished")) //nolint:goerr113
		prod.CloseWithError(err)
		if err != nil {
			errc <- err
		}
	}()

	select {
	case head := <-heads:
		return bpipe.NewResponse(head.status, head.header, bpipe.NewBody(body)), nil
	case err := <-errc:
		// the body may have failed after the head arrived; that error is on the body
		select {
		case head := <-heads:
			return bpipe.NewResponse(head.status, head.header, bpipe.NewBody(body)), nil
		default:
		}

		body.Close()
		return nil, bpipe.NewError(bpipe.CodeBadGateway, errors.Wrapf(err, "remote unit %s", u.target.Redacted()))
	}
}

// copyRequestBody writes the data frames into w and records the trailers, if any.
func copyRequestBody(ctx context.Context, cons *bpipe.Consumer, w io.Writer, trailers http.Header) error {
	defer cons.Close()

	for {
		f, err := cons.Receive(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return err
		}

		if f.IsTrailers() {
			for k, vs := range f.Trailers() {
				trailers[k] = vs
			}

			continue
		}

		if _, err := w.Write(f.Data()); err != nil {
			return err
		}
	}
}

// pumpResponse streams the remote response body into prod and ends it with the remote trailers.
func pumpResponse(ctx context.Context, res *http.Response, prod *bpipe.Producer) error {
	for {
		buf := make([]byte, remoteChunkSize)

		n, err := res.Body.Read(buf)
		if n > 0 {
			if serr := prod.Send(ctx, bpipe.DataFrame(buf[:n])); serr != nil {
				return serr
			}
		}

		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return errors.Wrap(err, "read remote response body")
		}
	}

	tr := lo.OmitBy(res.Trailer, func(_ string, vs []string) bool { return len(vs) == 0 })
	if len(tr) > 0 {
		if err := prod.Send(ctx, bpipe.TrailersFrame(tr)); err != nil {
			return err
		}
	}

	prod.Close()

	return nil
}

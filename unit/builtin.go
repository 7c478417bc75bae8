package unit

import (
	"context"
	"mime"
	"net/http"
	"strings"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/validate"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

func registerBuiltins(r *Registry, logs *zap.Logger) {
	r.RegisterService("echo", func(string) (bpipe.Handler, error) { return Echo(logs), nil })
	r.RegisterService("validator", func(string) (bpipe.Handler, error) { return Validator(), nil })
	r.RegisterService("fail", func(msg string) (bpipe.Handler, error) { return Fail(msg), nil })

	r.RegisterMiddleware("passthrough", func(string) (bpipe.Middleware, error) { return bpipe.Passthrough(), nil })
	r.RegisterMiddleware("forward", func(string) (bpipe.Middleware, error) { return Forward(logs), nil })
	r.RegisterMiddleware("logging", func(label string) (bpipe.Middleware, error) {
		if label == "" {
			return nil, errors.New("logging unit requires a label, e.g. logging:mdlA") //nolint:goerr113
		}

		return Logging(label, logs), nil
	})
}

// Echo answers with the request's headers and streams the request body back as the response body.
// Hop-by-hop headers and Content-Length describe the inbound connection and are not echoed.
func Echo(logs *zap.Logger) bpipe.Handler {
	return bpipe.HandlerFunc(func(_ context.Context, r *bpipe.Request) (*bpipe.Response, error) {
		logs.Debug("echo", zap.String("method", r.Method), zap.Stringer("url", r.URL))

		return bpipe.NewResponse(http.StatusOK, endToEnd(r.Header), r.Body), nil
	})
}

var hopHeaders = []string{
	"Connection", "Proxy-Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Content-Length",
}

// endToEnd clones h without the hop-by-hop headers, including those named by Connection.
func endToEnd(h bpipe.Header) bpipe.Header {
	out := h.Clone()
	if out == nil {
		return nil
	}

	for _, v := range h.Values("Connection") {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				out.Del(name)
			}
		}
	}

	for _, name := range hopHeaders {
		out.Del(name)
	}

	return out
}

// Fail always fails the exchange with an internal error.
func Fail(msg string) bpipe.Handler {
	if msg == "" {
		msg = "InternalError"
	}

	return bpipe.HandlerFunc(func(context.Context, *bpipe.Request) (*bpipe.Response, error) {
		return nil, bpipe.Errorf(bpipe.CodeInternalServerError, "%s", msg)
	})
}

// Forward passes every request on unchanged and logs around it.
func Forward(logs *zap.Logger) bpipe.Middleware {
	return func(next bpipe.Handler) bpipe.Handler {
		return bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
			logs.Info("entered", zap.String("unit", "forward"))

			resp, err := next.Handle(ctx, r)
			if err != nil {
				return nil, err
			}

			logs.Info("received response", zap.String("unit", "forward"), zap.Int("status", resp.Status))

			return resp, nil
		})
	}
}

// Logging logs when the exchange enters and leaves it, under the given label.
func Logging(label string, logs *zap.Logger) bpipe.Middleware {
	return bpipe.Bracket(
		func(_ context.Context, r *bpipe.Request) {
			logs.Info("enter", zap.String("unit", label), zap.String("method", r.Method), zap.Stringer("url", r.URL))
		},
		func(_ context.Context, _ *bpipe.Request, resp *bpipe.Response, err error) {
			if err != nil {
				logs.Info("exit", zap.String("unit", label), zap.Error(err))
				return
			}

			logs.Info("exit", zap.String("unit", label), zap.Int("status", resp.Status))
		},
	)
}

// Validator checks the request text: the body as is, or the "text" field of a JSON body. Valid text is
// answered with 200, anything else with 422. Both carry the validation message as body.
func Validator() bpipe.Handler {
	return bpipe.HandlerFunc(func(ctx context.Context, r *bpipe.Request) (*bpipe.Response, error) {
		in, err := bpipe.Collect(ctx, r.Body)
		if err != nil {
			return nil, bpipe.NewError(bpipe.CodeBadRequest, errors.Wrap(err, "read text"))
		}

		text := string(in.Bytes())
		if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
			field := gjson.GetBytes(in.Bytes(), "text")
			if !field.Exists() || field.Type != gjson.String {
				return nil, bpipe.Errorf(bpipe.CodeBadRequest, "json body has no string field \"text\"")
			}

			text = field.String()
		}

		ok, msg := validate.Text(text)

		status := http.StatusOK
		if !ok {
			status = http.StatusUnprocessableEntity
		}

		h := bpipe.Header{}
		h.Set("Content-Type", "text/plain; charset=utf-8")

		return bpipe.NewResponse(status, h, bpipe.BodyFromBytes([]byte(msg))), nil
	})
}

package bpipe_test

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bpipetest"
)

func Example() {
	logging := func(name string) bpipe.Middleware {
		return bpipe.Bracket(
			func(context.Context, *bpipe.Request) { fmt.Println("enter", name) },
			func(context.Context, *bpipe.Request, *bpipe.Response, error) { fmt.Println("exit", name) },
		)
	}

	p := bpipe.NewBuilder().
		Use("a", logging("a")).
		Use("b", logging("b")).
		Build(bpipe.HandlerFunc(func(_ context.Context, r *bpipe.Request) (*bpipe.Response, error) {
			fmt.Println("service")
			return bpipe.NewResponse(http.StatusOK, r.Header.Clone(), r.Body), nil
		}))

	sink := bpipetest.NewSink()
	err := bpipe.NewRunner(p, nil).Run(context.Background(), bpipe.Inbound{
		Method: http.MethodGet,
		URL:    &url.URL{Scheme: "http", Host: "localhost", Path: "/"},
		Body:   bpipetest.NewSource(bpipe.DataFrame([]byte("hello"))),
	}, sink)

	fmt.Println(err, sink.Status(), sink.Body())
	// Output:
	// enter a
	// enter b
	// service
	// exit b
	// exit a
	// <nil> 200 hello
}

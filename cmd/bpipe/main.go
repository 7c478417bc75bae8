// Command bpipe serves a handler pipeline or runs single exchanges through it.
//
//	bpipe serve                     serve the configured pipeline on BP_PORT
//	bpipe run [service-ref]         run the echo exchange and print the response
//	bpipe validate <text> [ref]     validate text with the validator unit
//
// The pipeline is configured with BP_MIDDLEWARE, BP_SERVICE and BP_MANIFEST.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/advdv/bpipe"
	"github.com/advdv/bpipe/bhost"
	"go.uber.org/zap"
)

const usage = `usage:
  bpipe serve
  bpipe run [service-ref]
  bpipe validate <text> [service-ref]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	switch args[0] {
	case "serve":
		if err := bhost.NewApp[bhost.BaseEnvironment]().Start(ctx); err != nil {
			fmt.Fprintf(stderr, "serve: %v\n", err)
			return 1
		}

		return 0
	case "run":
		var opts []bhost.Option
		if len(args) > 1 {
			opts = append(opts, bhost.WithService(args[1]))
		}

		return oneShot(ctx, stdout, stderr, bhost.EchoInbound(), printResult, opts...)
	case "validate":
		if len(args) < 2 {
			fmt.Fprint(stderr, usage)
			return 2
		}

		ref := "validator"
		if len(args) > 2 {
			ref = args[2]
		}

		return oneShot(ctx, stdout, stderr, bhost.TextInbound(args[1]), printBody, bhost.WithService(ref))
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}
}

// oneShot runs a single exchange. A handler failure or a broken response is exit status 1; the failure
// response is still printed.
func oneShot(
	ctx context.Context, stdout, stderr io.Writer, in bpipe.Inbound,
	show func(io.Writer, *bhost.Result), opts ...bhost.Option,
) int {
	var (
		res  *bhost.Result
		xerr error
	)

	if err := bhost.Invoke[bhost.BaseEnvironment](ctx, func(logs *zap.Logger, r *bpipe.Runner) {
		res, xerr = bhost.Exchange(ctx, logs, r, in)
	}, opts...); err != nil {
		fmt.Fprintf(stderr, "setup: %v\n", err)
		return 1
	}

	show(stdout, res)

	if xerr != nil {
		fmt.Fprintf(stderr, "exchange failed: %v\n", xerr)
		return 1
	}

	return 0
}

func printResult(w io.Writer, res *bhost.Result) {
	fmt.Fprintf(w, "status: %d\n", res.Status())
	printHeader(w, "header", res.Header())
	fmt.Fprintf(w, "body: %s\n", res.Body())
	printHeader(w, "trailer", res.Trailers())
}

func printBody(w io.Writer, res *bhost.Result) {
	fmt.Fprintln(w, res.Body())
}

func printHeader(w io.Writer, kind string, h bpipe.Header) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		fmt.Fprintf(w, "%s %s: %s\n", kind, strings.ToLower(k), strings.Join(h[k], ", "))
	}
}

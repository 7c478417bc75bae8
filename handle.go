package bpipe

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the pipeline's view of an inbound request. Its body may still be arriving while handlers run.
type Request struct {
	Method string
	URL    *url.URL
	Header Header
	Body   *Body
}

// NewRequest inits a request. A nil body is replaced by an empty one.
func NewRequest(method string, u *url.URL, h Header, body *Body) *Request {
	if h == nil {
		h = Header{}
	}

	if body == nil {
		body = EmptyBody()
	}

	return &Request{Method: method, URL: u, Header: h, Body: body}
}

// Response is what a handler produces. Its body may still be produced after the handler returned.
type Response struct {
	Status int
	Header Header
	Body   *Body
}

// NewResponse inits a response. A zero status becomes 200 and a nil body is replaced by an empty one.
func NewResponse(status int, h Header, body *Body) *Response {
	if status == 0 {
		status = http.StatusOK
	}

	if h == nil {
		h = Header{}
	}

	if body == nil {
		body = EmptyBody()
	}

	return &Response{Status: status, Header: h, Body: body}
}

// Handler is the capability every pipeline stage implements. A non-nil error is the failure outcome, in which
// case any returned response is abandoned. Handlers may block on body frames or downstream calls, and must
// not keep the request body after returning unless they moved it into the response.
type Handler interface {
	Handle(ctx context.Context, r *Request) (*Response, error)
}

// HandlerFunc allow casting a function to implement [Handler].
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the [Handler] interface.
func (f HandlerFunc) Handle(ctx context.Context, r *Request) (*Response, error) {
	return f(ctx, r)
}

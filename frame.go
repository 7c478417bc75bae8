package bpipe

import "net/http"

// Header maps a key to its ordered values. Duplicate values are preserved.
type Header = http.Header

// Frame is a single unit of a streaming body: either a chunk of data or the terminal trailer set.
type Frame struct {
	data     []byte
	trailers Header
	terminal bool
}

// DataFrame creates a data frame. The frame takes ownership of b.
func DataFrame(b []byte) Frame {
	return Frame{data: b}
}

// TrailersFrame creates the terminal trailers frame. A nil header is an empty trailer set.
func TrailersFrame(h Header) Frame {
	if h == nil {
		h = Header{}
	}

	return Frame{trailers: h, terminal: true}
}

// IsData reports whether the frame carries data.
func (f Frame) IsData() bool { return !f.terminal }

// IsTrailers reports whether the frame is the terminal trailers frame.
func (f Frame) IsTrailers() bool { return f.terminal }

// Data returns the frame's bytes, nil for a trailers frame.
func (f Frame) Data() []byte { return f.data }

// Trailers returns the trailer set, nil for a data frame.
func (f Frame) Trailers() Header { return f.trailers }

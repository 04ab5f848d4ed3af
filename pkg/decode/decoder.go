// Package decode turns camera frames into QR text.
//
// A Decoder handles one frame. A Loop pulls frames from a live track and
// reports each outcome to a single callback until it is stopped.
package decode

import (
	"errors"
	"fmt"
	"image"
)

// ErrNotFound means the frame held no decodable code. It is the steady
// state of a scanning loop, not a failure.
var ErrNotFound = errors.New("decode: no code in frame")

// Decoder extracts QR text from a frame.
type Decoder interface {
	// Decode returns the decoded text, or an error wrapping ErrNotFound
	// when the frame has no readable code.
	Decode(img image.Image) (string, error)

	// Close releases resources
	Close() error
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(img image.Image) (string, error)

// Decode calls f(img).
func (f DecoderFunc) Decode(img image.Image) (string, error) { return f(img) }

// Close is a no-op.
func (f DecoderFunc) Close() error { return nil }

// Backend names accepted by New.
const (
	BackendZXing  = "zxing"
	BackendOpenCV = "opencv"
)

// New creates the decoder for a backend name.
func New(backend string) (Decoder, error) {
	switch backend {
	case BackendZXing, "":
		return NewZXing(true), nil
	case BackendOpenCV:
		return NewOpenCV(), nil
	default:
		return nil, fmt.Errorf("decode: unknown backend %q", backend)
	}
}

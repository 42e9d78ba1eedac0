// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package token

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/abudulemusa/foolscap/lib/codec"
)

// frameHeaderSize is the length prefix on every token frame.
const frameHeaderSize = 4

// Limits bounds what a Reader will accept from a peer.
type Limits struct {
	// MaxTokenBytes is the largest encoded token frame accepted. It
	// bounds every byte string and text token.
	MaxTokenBytes int

	// MaxMessageTokens is the most tokens a single top-level item
	// (one broker message) may contain.
	MaxMessageTokens int

	// MaxDepth is the deepest Open nesting accepted.
	MaxDepth int
}

// EnvelopeDepth is the Reader depth allowed beyond a value's maximum
// depth: the message itself, a call's argument tuple or keyword
// mapping, and one more level so that a value nested one level too deep
// reaches the value check and is rejected there, without breaking the
// stream.
const EnvelopeDepth = 3

// DefaultLimits returns the limits used when a configuration does not
// override them.
func DefaultLimits() Limits {
	return Limits{
		MaxTokenBytes:    1 << 20,
		MaxMessageTokens: 65536,
		MaxDepth:         64 + EnvelopeDepth,
	}
}

// Reader decodes tokens from a byte stream. It is not safe for
// concurrent use; a connection has exactly one reader loop.
type Reader struct {
	source io.Reader
	limits Limits
	header [frameHeaderSize]byte
	depth  int
	inItem int
	failed error
}

// NewReader returns a Reader that enforces limits on source.
func NewReader(source io.Reader, limits Limits) *Reader {
	return &Reader{source: source, limits: limits}
}

// Depth returns the current Open nesting depth.
func (r *Reader) Depth() int { return r.depth }

// Next reads one token. It returns io.EOF only at a clean boundary
// between top-level items; EOF inside an item is a FramingError. After
// any FramingError every later call returns the same error.
func (r *Reader) Next() (Token, error) {
	if r.failed != nil {
		return Token{}, r.failed
	}
	t, err := r.next()
	if err != nil {
		var framing *FramingError
		if errors.As(err, &framing) {
			r.failed = err
		}
		return Token{}, err
	}
	return t, nil
}

func (r *Reader) next() (Token, error) {
	if _, err := io.ReadFull(r.source, r.header[:]); err != nil {
		if errors.Is(err, io.EOF) && r.depth == 0 {
			return Token{}, io.EOF
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Token{}, &FramingError{Reason: "truncated frame header", Err: err}
		}
		return Token{}, err
	}

	length := binary.BigEndian.Uint32(r.header[:])
	if length == 0 {
		return Token{}, Framingf("empty frame")
	}
	if uint64(length) > uint64(r.limits.MaxTokenBytes) {
		return Token{}, Framingf("frame of %d bytes exceeds limit of %d", length, r.limits.MaxTokenBytes)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r.source, body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Token{}, &FramingError{Reason: "truncated frame body", Err: err}
		}
		return Token{}, err
	}

	var t Token
	if err := codec.Unmarshal(body, &t); err != nil {
		return Token{}, &FramingError{Reason: "undecodable token " + describeFrame(body), Err: err}
	}
	if err := r.track(t); err != nil {
		return Token{}, err
	}
	return t, nil
}

// maxDiagnosedFrame bounds the frames rendered into error messages.
const maxDiagnosedFrame = 64

// describeFrame renders a rejected frame body for an error message.
func describeFrame(body []byte) string {
	if len(body) > maxDiagnosedFrame {
		return fmt.Sprintf("(%d bytes)", len(body))
	}
	diagnostic, err := codec.Diagnose(body)
	if err != nil {
		return fmt.Sprintf("(%d bytes, not CBOR)", len(body))
	}
	return diagnostic
}

// track validates t's shape and updates nesting and item accounting.
func (r *Reader) track(t Token) error {
	if err := wellFormed(t); err != nil {
		return err
	}

	r.inItem++
	if r.inItem > r.limits.MaxMessageTokens {
		return Framingf("item exceeds %d tokens", r.limits.MaxMessageTokens)
	}

	switch t.Kind {
	case KindOpen:
		r.depth++
		if r.depth > r.limits.MaxDepth {
			return Framingf("nesting exceeds depth %d", r.limits.MaxDepth)
		}
	case KindClose:
		if r.depth == 0 {
			return Framingf("close token with no open container")
		}
		r.depth--
	}
	if r.depth == 0 {
		r.inItem = 0
	}
	return nil
}

// wellFormed checks the per-kind field rules a decoder can verify
// without any schema.
func wellFormed(t Token) error {
	switch t.Kind {
	case KindInteger:
		if len(t.Magnitude) > 0 && t.Int != 0 {
			return Framingf("integer token carries both compact and big forms")
		}
		if len(t.Magnitude) > 0 && t.Magnitude[0] == 0 {
			return Framingf("integer magnitude has a leading zero byte")
		}
	case KindBytes, KindText, KindBoolean, KindFloat, KindClose,
		KindMyReference, KindYourReference:
	case KindOpen:
		switch t.Container {
		case ContainerList, ContainerTuple, ContainerSet, ContainerFrozenSet, ContainerMapping:
			if t.Text != "" {
				return Framingf("open %s token carries text", t.Container)
			}
		case ContainerMessage:
			if t.Text == "" {
				return Framingf("message open token has no message type")
			}
		default:
			return Framingf("unknown container %d", uint8(t.Container))
		}
	default:
		return Framingf("unknown token kind %d", uint8(t.Kind))
	}
	return nil
}

// Writer encodes tokens onto a byte stream. Write is safe for
// concurrent use; each call's tokens are written contiguously.
type Writer struct {
	mu   sync.Mutex
	sink io.Writer
}

// NewWriter returns a Writer on sink.
func NewWriter(sink io.Writer) *Writer {
	return &Writer{sink: sink}
}

// Write encodes all tokens and writes them with a single call to the
// underlying writer, so a failure never leaves a partial token on the
// stream from this call's perspective.
func (w *Writer) Write(tokens ...Token) error {
	encoded, err := Encode(tokens...)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.sink.Write(encoded); err != nil {
		return fmt.Errorf("token: writing %d tokens: %w", len(tokens), err)
	}
	return nil
}

// Encode returns the framed encoding of tokens.
func Encode(tokens ...Token) ([]byte, error) {
	var buffer bytes.Buffer
	var header [frameHeaderSize]byte
	for _, t := range tokens {
		body, err := codec.Marshal(t)
		if err != nil {
			return nil, fmt.Errorf("token: encoding %s: %w", t, err)
		}
		binary.BigEndian.PutUint32(header[:], uint32(len(body)))
		buffer.Write(header[:])
		buffer.Write(body)
	}
	return buffer.Bytes(), nil
}

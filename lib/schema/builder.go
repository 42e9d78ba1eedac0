// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"

	"github.com/abudulemusa/foolscap/lib/token"
)

// ErrBuilderFailed is returned by Feed after an earlier Feed failed.
var ErrBuilderFailed = errors.New("schema: builder already failed")

// Builder reconstructs one inbound value from tokens, checking each
// token against the constraint as it arrives. Count bounds are enforced
// before a member's tokens are read, so a hostile peer cannot make the
// Builder buffer more than the constraint allows.
//
// A Builder is not safe for concurrent use.
type Builder struct {
	state *checkState
	root  Constraint
	stack []level
	done  bool
	err   error
	value any
}

// level is one open container.
type level struct {
	frame   frame
	segment string // this container's position in its parent
	member  string // position of the member being read
}

// NewBuilder returns a Builder for one value of root. references
// decodes reference tokens; with nil, any reference violates.
func NewBuilder(root Constraint, limits Limits, references ReferenceDecoder) *Builder {
	return &Builder{
		state: newCheckState(Inbound, limits, references),
		root:  root,
	}
}

// Feed consumes the next token. It reports done when the value is
// complete. Errors are a *Violation, with Path locating the offending
// member, or a *token.FramingError for a stream that cannot be a value
// of any shape. After an error the Builder rejects further tokens.
func (b *Builder) Feed(t token.Token) (done bool, err error) {
	if b.err != nil {
		return false, ErrBuilderFailed
	}
	if b.done {
		return false, b.fail(token.Framingf("%s after a complete value", t))
	}
	if t.Kind == token.KindClose {
		return b.close()
	}

	constraint, segment := b.root, ""
	if len(b.stack) > 0 {
		top := &b.stack[len(b.stack)-1]
		constraint, segment, err = top.frame.child(b.state)
		if err != nil {
			return false, b.fail(err)
		}
		top.member = segment
	}

	if t.Kind == token.KindOpen {
		if t.Container == token.ContainerMessage {
			return false, b.fail(token.Framingf("message opened inside a value"))
		}
		if err := b.state.descend(); err != nil {
			return false, b.fail(err, segment)
		}
		f, err := constraint.openFrame(t, b.state)
		if err != nil {
			b.state.ascend()
			return false, b.fail(err, segment)
		}
		b.stack = append(b.stack, level{frame: f, segment: segment})
		return false, nil
	}

	value, err := constraint.checkToken(t, b.state)
	if err != nil {
		return false, b.fail(err, segment)
	}
	return b.deliver(value)
}

// Value returns the completed value. It is nil until Feed reports done.
func (b *Builder) Value() any { return b.value }

// Depth returns the number of open containers.
func (b *Builder) Depth() int { return len(b.stack) }

func (b *Builder) close() (bool, error) {
	if len(b.stack) == 0 {
		return false, b.fail(token.Framingf("close with no open container"))
	}
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	b.state.ascend()
	value, err := top.frame.close(b.state)
	if err != nil {
		return false, b.fail(err, top.segment)
	}
	return b.deliver(value)
}

// deliver hands a finished member to its container, or completes the
// value.
func (b *Builder) deliver(value any) (bool, error) {
	if len(b.stack) == 0 {
		b.done, b.value = true, value
		return true, nil
	}
	top := &b.stack[len(b.stack)-1]
	if err := top.frame.add(value, b.state); err != nil {
		return false, b.fail(err, top.member)
	}
	return false, nil
}

// fail records err, prefixing violations with the path of the open
// containers and any extra segments.
func (b *Builder) fail(err error, extra ...string) error {
	var path []string
	for _, open := range b.stack {
		if open.segment != "" {
			path = append(path, open.segment)
		}
	}
	for _, segment := range extra {
		if segment != "" {
			path = append(path, segment)
		}
	}
	b.err = WithPrefix(err, path...)
	return b.err
}

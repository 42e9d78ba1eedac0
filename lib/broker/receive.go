// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/abudulemusa/foolscap/lib/remoteinterface"
	"github.com/abudulemusa/foolscap/lib/schema"
	"github.com/abudulemusa/foolscap/lib/token"
	"github.com/abudulemusa/foolscap/transport"
)

// Message kinds. These names are part of the wire protocol.
const (
	messageHello  = "hello"
	messageCall   = "call"
	messageAnswer = "answer"
	messageError  = "error"
	messageLookup = "lookup"
	messageDecref = "decref"
)

// ErrNotPublished is the reason sent for a lookup of an unknown swiss
// number.
var ErrNotPublished = errors.New("broker: nothing published under that swiss number")

// receive is the connection's read loop. Each message is read, checked
// and dispatched before the next one is read.
func (b *Broker) receive() {
	for {
		t, err := b.reader.Next()
		if err != nil {
			b.readFailed(err)
			return
		}
		if !t.IsOpen(token.ContainerMessage) {
			b.readFailed(token.Framingf("expected a message, got %s", t))
			return
		}
		if err := b.handle(t.Text); err != nil {
			b.readFailed(err)
			return
		}
	}
}

func (b *Broker) readFailed(err error) {
	switch {
	case errors.Is(err, token.ErrFraming):
		b.logger.Warn("framing error, closing connection", "error", err)
		b.shutdown(err)
	case !b.Connected():
		// Closed locally; the read error is the close itself.
	case transport.IsExpectedCloseError(err):
		b.shutdown(nil)
	default:
		b.logger.Error("read failed", "error", err)
		b.shutdown(err)
	}
}

// handle reads the rest of one message. A returned error ends the
// connection; a rejected request is answered and reading continues.
func (b *Broker) handle(kind string) error {
	switch kind {
	case messageHello:
		return b.receiveHello()
	case messageCall:
		return b.receiveCall()
	case messageAnswer:
		return b.receiveAnswer()
	case messageError:
		return b.receiveError()
	case messageLookup:
		return b.receiveLookup()
	case messageDecref:
		return b.receiveDecref()
	default:
		return token.Framingf("unknown message %q", kind)
	}
}

func (b *Broker) receiveHello() error {
	authority, err := b.readText(messageHello)
	if err != nil {
		return err
	}
	location, err := b.readText(messageHello)
	if err != nil {
		return err
	}
	if err := b.readEnd(messageHello); err != nil {
		return err
	}

	b.mu.Lock()
	if b.helloSeen {
		b.mu.Unlock()
		return token.Framingf("duplicate hello")
	}
	b.helloSeen = true
	b.peerAuthority, b.peerLocation = authority, location
	b.mu.Unlock()
	close(b.hello)

	b.logger.Debug("peer announced", "authority", authority, "peer_location", location)
	b.directory.announced(b, location)
	return nil
}

func (b *Broker) receiveCall() error {
	request, err := b.readID(messageCall)
	if err != nil {
		return err
	}
	targetID, err := b.readID(messageCall)
	if err != nil {
		return err
	}
	methodName, err := b.readText(messageCall)
	if err != nil {
		return err
	}

	target, method, err := b.callTarget(targetID, methodName)
	if err != nil {
		return b.reject(request, err)
	}
	positional, keyword, err := b.readArguments(method)
	if err != nil {
		if !isViolation(err) {
			return err
		}
		return b.reject(request, err)
	}
	if err := b.readEnd(messageCall); err != nil {
		return err
	}
	// Each argument was checked as it was built; only the binding is
	// left to check.
	if err := method.CheckBinding(positional, keyword); err != nil {
		return b.reject(request, err)
	}

	b.logger.Debug("call", "request", request, "target", targetID, "method", methodName)
	go b.invoke(request, target, method, &remoteinterface.Call{
		Method:     method,
		Positional: positional,
		Keyword:    keyword,
	})
	return nil
}

// callTarget finds the local object and method a call names.
func (b *Broker) callTarget(id uint64, name string) (remoteinterface.Target, *remoteinterface.MethodSchema, error) {
	b.mu.Lock()
	object, ok := b.localObjects[id]
	b.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("no object exported under id %d", id)
	}
	target, ok := object.(remoteinterface.Target)
	if !ok {
		return nil, nil, fmt.Errorf("object %d is not callable", id)
	}
	method, ok := target.Interface().Method(name)
	if !ok {
		return nil, nil, &schema.Violation{
			Path:   []string{schema.FieldSegment(name)},
			Reason: fmt.Sprintf("interface %s has no method %q", target.Interface().Name(), name),
		}
	}
	return target, method, nil
}

// readArguments builds the positional tuple and keyword mapping of a
// call, checking each argument against its parameter's constraint as
// its tokens arrive.
func (b *Broker) readArguments(method *remoteinterface.MethodSchema) ([]any, map[string]any, error) {
	if err := b.readOpen(messageCall, token.ContainerTuple); err != nil {
		return nil, nil, err
	}
	var positional []any
	for {
		t, err := b.reader.Next()
		if err != nil {
			return nil, nil, err
		}
		if t.Kind == token.KindClose {
			break
		}
		name, constraint, err := method.PositionalArgAt(len(positional))
		if err != nil {
			return nil, nil, err
		}
		value, err := b.build(t, constraint)
		if err != nil {
			return nil, nil, schema.WithPrefix(err, schema.FieldSegment(method.Name()), schema.FieldSegment(name))
		}
		positional = append(positional, value)
	}

	if err := b.readOpen(messageCall, token.ContainerMapping); err != nil {
		return nil, nil, err
	}
	keyword := make(map[string]any)
	for {
		t, err := b.reader.Next()
		if err != nil {
			return nil, nil, err
		}
		if t.Kind == token.KindClose {
			break
		}
		if t.Kind != token.KindText {
			return nil, nil, &schema.Violation{
				Path:   []string{schema.FieldSegment(method.Name())},
				Reason: "keyword argument name must be text, got " + t.String(),
			}
		}
		name, constraint, err := method.KeywordArg(t.Text, len(positional), keyword)
		if err != nil {
			return nil, nil, err
		}
		value, err := b.readValue(constraint)
		if err != nil {
			return nil, nil, schema.WithPrefix(err, schema.FieldSegment(method.Name()), schema.FieldSegment(name))
		}
		keyword[name] = value
	}
	return positional, keyword, nil
}

// invoke runs a checked call and sends its outcome. It runs outside the
// read loop so a method may itself call back over the same connection.
func (b *Broker) invoke(request uint64, target remoteinterface.Target, method *remoteinterface.MethodSchema, call *remoteinterface.Call) {
	result, err := target.Invoke(context.Background(), call)
	if err != nil {
		b.replyError(request, err)
		return
	}
	if err := method.CheckResultWithLimits(result, schema.Outbound, b.limits); err != nil {
		b.logger.Warn("method returned a non-conforming result", "method", method.Name(), "error", err)
		b.replyError(request, err)
		return
	}
	tokens, err := schema.FlattenWithLimits(result, b, b.limits)
	if err != nil {
		b.replyError(request, err)
		return
	}
	b.replyAnswer(request, tokens)
}

func (b *Broker) receiveAnswer() error {
	request, err := b.readID(messageAnswer)
	if err != nil {
		return err
	}
	pending := b.claim(request)
	if pending == nil {
		b.logger.Debug("answer for unknown request", "request", request)
		return b.discard()
	}

	value, err := b.readValue(pending.response)
	if err != nil {
		pending.result <- outcome{err: schema.WithPrefix(err, pending.path...)}
		if !isViolation(err) {
			return err
		}
		return b.discard()
	}
	if err := b.readEnd(messageAnswer); err != nil {
		pending.result <- outcome{err: err}
		return err
	}
	pending.result <- outcome{value: value}
	return nil
}

func (b *Broker) receiveError() error {
	request, err := b.readID(messageError)
	if err != nil {
		return err
	}
	reason, err := b.readText(messageError)
	if err != nil {
		return err
	}
	violation, err := b.readBool(messageError)
	if err != nil {
		return err
	}
	path, err := b.readText(messageError)
	if err != nil {
		return err
	}
	if err := b.readEnd(messageError); err != nil {
		return err
	}

	pending := b.claim(request)
	if pending == nil {
		b.logger.Debug("error for unknown request", "request", request)
		return nil
	}
	pending.result <- outcome{err: &RemoteError{Reason: reason, Violation: violation, Path: path}}
	return nil
}

func (b *Broker) receiveLookup() error {
	request, err := b.readID(messageLookup)
	if err != nil {
		return err
	}
	swissNumber, err := b.readText(messageLookup)
	if err != nil {
		return err
	}
	if err := b.readEnd(messageLookup); err != nil {
		return err
	}

	object, ok := b.directory.lookup(swissNumber)
	if !ok {
		go b.replyError(request, ErrNotPublished)
		return nil
	}
	reference, err := b.EncodeReference(object)
	if err != nil {
		go b.replyError(request, err)
		return nil
	}
	go b.replyAnswer(request, []token.Token{reference})
	return nil
}

// receiveDecref drops an export once the peer has released as many
// copies of it as were sent.
func (b *Broker) receiveDecref() error {
	id, err := b.readID(messageDecref)
	if err != nil {
		return err
	}
	count, err := b.readID(messageDecref)
	if err != nil {
		return err
	}
	if err := b.readEnd(messageDecref); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	object, ok := b.localObjects[id]
	if !ok {
		return nil
	}
	if sent := b.sent[id]; count < sent {
		b.sent[id] = sent - count
		return nil
	}
	delete(b.sent, id)
	delete(b.localObjects, id)
	if isComparable(object) && b.localIDs[object] == id {
		delete(b.localIDs, object)
	}
	return nil
}

// reject discards the rest of the current message and answers the
// request with err. The read loop never writes directly: on a
// synchronous transport the peer's read loop may be blocked writing to
// this side.
func (b *Broker) reject(request uint64, err error) error {
	b.logger.Debug("rejected call", "request", request, "error", err)
	if discardErr := b.discard(); discardErr != nil {
		return discardErr
	}
	go b.replyError(request, err)
	return nil
}

func (b *Broker) replyAnswer(request uint64, value []token.Token) {
	message := make([]token.Token, 0, len(value)+3)
	message = append(message, token.OpenMessage(messageAnswer), token.Int(int64(request)))
	message = append(message, value...)
	message = append(message, token.Close())
	if err := b.send(message...); err != nil {
		b.logger.Debug("answer not sent", "request", request, "error", err)
	}
}

func (b *Broker) replyError(request uint64, err error) {
	reason, violation, path := err.Error(), false, ""
	var v *schema.Violation
	if errors.As(err, &v) {
		reason, violation, path = v.Reason, true, v.Location()
	}
	sendErr := b.send(
		token.OpenMessage(messageError),
		token.Int(int64(request)),
		token.Text(reason),
		token.Bool(violation),
		token.Text(path),
		token.Close(),
	)
	if sendErr != nil {
		b.logger.Debug("error not sent", "request", request, "error", sendErr)
	}
}

// claim removes and returns the pending request with id, or nil.
func (b *Broker) claim(id uint64) *pendingRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	pending, ok := b.pending[id]
	if !ok {
		return nil
	}
	delete(b.pending, id)
	return pending
}

// build feeds tokens, starting with first, into a Builder for
// constraint until one value is complete.
func (b *Broker) build(first token.Token, constraint schema.Constraint) (any, error) {
	builder := schema.NewBuilder(constraint, b.limits, b)
	t := first
	for {
		done, err := builder.Feed(t)
		if err != nil {
			return nil, err
		}
		if done {
			return builder.Value(), nil
		}
		if t, err = b.reader.Next(); err != nil {
			return nil, err
		}
	}
}

func (b *Broker) readValue(constraint schema.Constraint) (any, error) {
	t, err := b.reader.Next()
	if err != nil {
		return nil, err
	}
	if t.Kind == token.KindClose {
		return nil, token.Framingf("message ended where a value was expected")
	}
	return b.build(t, constraint)
}

// discard skips the rest of the current message.
func (b *Broker) discard() error {
	for b.reader.Depth() > 0 {
		if _, err := b.reader.Next(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Broker) readID(message string) (uint64, error) {
	t, err := b.reader.Next()
	if err != nil {
		return 0, err
	}
	if t.Kind != token.KindInteger || len(t.Magnitude) != 0 || t.Int < 0 {
		return 0, token.Framingf("%s message: expected an id, got %s", message, t)
	}
	return uint64(t.Int), nil
}

func (b *Broker) readText(message string) (string, error) {
	t, err := b.reader.Next()
	if err != nil {
		return "", err
	}
	if t.Kind != token.KindText {
		return "", token.Framingf("%s message: expected text, got %s", message, t)
	}
	return t.Text, nil
}

func (b *Broker) readBool(message string) (bool, error) {
	t, err := b.reader.Next()
	if err != nil {
		return false, err
	}
	if t.Kind != token.KindBoolean {
		return false, token.Framingf("%s message: expected a boolean, got %s", message, t)
	}
	return t.Bool, nil
}

func (b *Broker) readOpen(message string, container token.Container) error {
	t, err := b.reader.Next()
	if err != nil {
		return err
	}
	if !t.IsOpen(container) {
		return token.Framingf("%s message: expected %s, got %s", message, container, t)
	}
	return nil
}

func (b *Broker) readEnd(message string) error {
	t, err := b.reader.Next()
	if err != nil {
		return err
	}
	if t.Kind != token.KindClose {
		return token.Framingf("%s message: expected end of message, got %s", message, t)
	}
	return nil
}

func isViolation(err error) bool {
	var violation *schema.Violation
	return errors.As(err, &violation)
}

// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrDeadReference matches every *DeadReferenceError via errors.Is.
	ErrDeadReference = errors.New("broker: dead reference")

	// ErrUnknownInterface is returned when a call is made through a
	// reference whose declared interface is not registered locally, so
	// the arguments cannot be checked.
	ErrUnknownInterface = errors.New("broker: unknown remote interface")

	// ErrUnknownMethod is returned when a call names a method the
	// reference's interface does not declare.
	ErrUnknownMethod = errors.New("broker: unknown method")

	// ErrUnsupportedGift is returned when a value being sent holds a
	// reference obtained through a different connection. Introducing
	// a third party is not supported.
	ErrUnsupportedGift = errors.New("broker: reference belongs to another connection")

	// ErrReleased is returned by calls through a reference after
	// Release.
	ErrReleased = errors.New("broker: reference released")

	// ErrAuthorityMismatch is returned by Resolve when the peer at a
	// SturdyRef's location announces a different authority than the
	// one the SturdyRef names.
	ErrAuthorityMismatch = errors.New("broker: peer authority does not match")

	// ErrNoDialer is returned by Connect on a Directory built without
	// a Dialer.
	ErrNoDialer = errors.New("broker: directory has no dialer")

	// ErrNoListenAddress is returned by Listen on a Directory built
	// without a listen address.
	ErrNoListenAddress = errors.New("broker: directory has no listen address")
)

// DeadReferenceError reports a call through a reference whose broker
// has disconnected. The reference will never work again; resolve its
// SturdyRef to obtain a fresh one.
type DeadReferenceError struct {
	BrokerID    ulid.ULID
	ReferenceID uint64
	Interface   string
}

func (e *DeadReferenceError) Error() string {
	if e.Interface == "" {
		return fmt.Sprintf("broker: dead reference %d on broker %s", e.ReferenceID, e.BrokerID)
	}
	return fmt.Sprintf("broker: dead reference %d (%s) on broker %s", e.ReferenceID, e.Interface, e.BrokerID)
}

func (e *DeadReferenceError) Is(target error) bool { return target == ErrDeadReference }

// RemoteError is a failure reported by the peer for one request. When
// Violation is set the peer rejected the request's arguments, and Path
// locates the offending argument.
type RemoteError struct {
	Reason    string
	Violation bool
	Path      string
}

func (e *RemoteError) Error() string {
	switch {
	case e.Violation && e.Path != "":
		return "broker: remote violation at " + e.Path + ": " + e.Reason
	case e.Violation:
		return "broker: remote violation: " + e.Reason
	default:
		return "broker: remote error: " + e.Reason
	}
}

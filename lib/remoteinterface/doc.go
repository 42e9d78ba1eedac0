// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package remoteinterface declares the callable surface of capabilities.
//
// A [RemoteInterface] is a named set of [MethodSchema] values. Its name
// and each method's parameter names, order, and constraints are part of
// the wire protocol: peers agree on them out of band, and changing them
// breaks compatibility.
//
// Every parameter carries an explicit [schema.Spec]. A declaration that
// omits one fails when the interface is built, with an
// *[InvalidInterfaceError], never at call time.
//
// An [Implementation] binds Go functions to the methods of one
// RemoteInterface and can be exported by a broker.
package remoteinterface

// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that timestamp events take a Clock instead of calling
// time.Now. Production code passes Real(); tests pass Fake(t0) and move
// time explicitly with Advance, so timestamps in assertions are exact.
package clock

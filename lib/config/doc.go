// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for brokers.
//
// Configuration is loaded from a single file specified by either the
// FOOLSCAP_CONFIG environment variable (via [Load]) or an explicit path
// (via [LoadFile]). There is no automatic file search.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production defaults are stricter: a
// smaller per-token byte limit.
//
// ${HOME} and ${VAR:-default} patterns are expanded in path fields
// after loading.
//
// Key exports:
//
//   - [Config] -- master struct with Limits and Broker sections
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Config.SchemaLimits] and [Config.TokenLimits] -- conversions
//     for the constraint engine and the token stream
package config

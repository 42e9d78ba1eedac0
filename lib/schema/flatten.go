// Copyright 2026 The Foolscap Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/abudulemusa/foolscap/lib/token"
)

// ErrNoReferenceEncoder is returned by Flatten for a capability value
// when no encoder was given.
var ErrNoReferenceEncoder = errors.New("schema: capability value without a reference encoder")

// Flatten serializes value to tokens. Call it only on values that have
// passed an outbound Check. Capabilities are encoded with references,
// which may be nil when the value holds none.
func Flatten(value any, references ReferenceEncoder) ([]token.Token, error) {
	return FlattenWithLimits(value, references, DefaultLimits())
}

// FlattenWithLimits is Flatten for values checked under limits.
func FlattenWithLimits(value any, references ReferenceEncoder, limits Limits) ([]token.Token, error) {
	f := flattener{references: references, limit: limits.MaxDepth}
	if err := f.flatten(value, 0); err != nil {
		return nil, err
	}
	return f.tokens, nil
}

type flattener struct {
	references ReferenceEncoder
	limit      int
	tokens     []token.Token
}

func (f *flattener) emit(t token.Token) { f.tokens = append(f.tokens, t) }

func (f *flattener) flatten(value any, depth int) error {
	if depth > f.limit {
		return fmt.Errorf("schema: flatten: nesting exceeds maximum depth %d", f.limit)
	}
	switch v := value.(type) {
	case string:
		f.emit(token.Text(v))
		return nil
	case []byte:
		f.emit(token.Bytes(v))
		return nil
	case bool:
		f.emit(token.Bool(v))
		return nil
	case float32:
		f.emit(token.Float(float64(v)))
		return nil
	case float64:
		f.emit(token.Float(v))
		return nil
	case *big.Int:
		if v == nil {
			return fmt.Errorf("schema: flatten: nil *big.Int")
		}
		f.emit(token.BigInt(v))
		return nil
	case Tuple:
		return f.container(token.ContainerTuple, v, depth)
	case Set:
		return f.container(token.ContainerSet, members(v), depth)
	case FrozenSet:
		return f.container(token.ContainerFrozenSet, members(v), depth)
	case Referenceable, RemoteProxy:
		if f.references == nil {
			return ErrNoReferenceEncoder
		}
		t, err := f.references.EncodeReference(v)
		if err != nil {
			return err
		}
		f.emit(t)
		return nil
	}
	if n, ok := integerValue(value); ok {
		f.emit(token.BigInt(n))
		return nil
	}
	if list, ok := isList(value); ok {
		items := make([]any, list.Len())
		for i := range items {
			items[i] = list.Index(i).Interface()
		}
		return f.container(token.ContainerList, items, depth)
	}
	if mapping, ok := isMapping(value); ok {
		items := make([]any, 0, 2*mapping.Len())
		entries := mapping.MapRange()
		for entries.Next() {
			items = append(items, entries.Key().Interface(), entries.Value().Interface())
		}
		return f.container(token.ContainerMapping, items, depth)
	}
	return fmt.Errorf("schema: flatten: unsupported value of type %s", describe(value))
}

func (f *flattener) container(container token.Container, items []any, depth int) error {
	f.emit(token.Open(container))
	for _, item := range items {
		if err := f.flatten(item, depth+1); err != nil {
			return err
		}
	}
	f.emit(token.Close())
	return nil
}

func members(set map[any]struct{}) []any {
	result := make([]any, 0, len(set))
	for member := range set {
		result = append(result, member)
	}
	return result
}

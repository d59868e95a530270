// Copyright 2025 The AgentDash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package deepequal implements structural equality over JSON-like values.
//
// Unlike reflect.DeepEqual it is tolerant of the type drift that JSON
// round-trips introduce (int vs float64, []any vs typed slices) and it is
// total: it terminates on self-referential structures and returns false
// instead of panicking on values it cannot compare.
package deepequal

import "reflect"

// Equal reports whether a and b are structurally equal. Arrays compare
// order-sensitively. Numeric values compare by value regardless of the Go
// kind carrying them.
//
// Cycles are detected per recursion path rather than with a global seen-set,
// so two independent subtrees that are legitimately deep-equal never trip
// the detector. A self-reference compares equal only when both sides cycle
// back at the same structural position; a one-sided cycle is not-equal.
func Equal(a, b any) (eq bool) {
	// Equality is a total function: anything the walk cannot handle is
	// not-equal, never a panic.
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return equalValue(reflect.ValueOf(a), reflect.ValueOf(b), &pathState{
		a: map[uintptr]int{},
		b: map[uintptr]int{},
	}, 0)
}

// pathState tracks the references currently on the recursion path, keyed by
// identity, with the depth at which each was entered. One map per side: the
// sides may cycle independently and must only compare equal when they cycle
// together.
type pathState struct {
	a map[uintptr]int
	b map[uintptr]int
}

func equalValue(a, b reflect.Value, path *pathState, depth int) bool {
	a = stripInterface(a)
	b = stripInterface(b)

	if a.Kind() == reflect.Pointer || b.Kind() == reflect.Pointer {
		return equalThroughPointers(a, b, path, depth)
	}

	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}

	if an, aok := asFloat(a); aok {
		bn, bok := asFloat(b)
		return bok && an == bn
	}

	ka, kb := a.Kind(), b.Kind()

	switch ka {
	case reflect.Bool:
		return kb == reflect.Bool && a.Bool() == b.Bool()

	case reflect.String:
		return kb == reflect.String && a.String() == b.String()

	case reflect.Slice, reflect.Array:
		if kb != reflect.Slice && kb != reflect.Array {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		// Arrays are values and cannot be cyclic; only slice pairs need
		// path bookkeeping.
		if ka == reflect.Slice && kb == reflect.Slice {
			if done, result := enterPair(a.Pointer(), b.Pointer(), path, depth); done {
				return result
			}
			defer leavePair(a.Pointer(), b.Pointer(), path)
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValue(a.Index(i), b.Index(i), path, depth+1) {
				return false
			}
		}
		return true

	case reflect.Map:
		if kb != reflect.Map {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		if done, result := enterPair(a.Pointer(), b.Pointer(), path, depth); done {
			return result
		}
		defer leavePair(a.Pointer(), b.Pointer(), path)
		iter := a.MapRange()
		for iter.Next() {
			bv := b.MapIndex(iter.Key())
			if !bv.IsValid() {
				return false
			}
			if !equalValue(iter.Value(), bv, path, depth+1) {
				return false
			}
		}
		return true

	case reflect.Struct:
		if kb != reflect.Struct || a.Type() != b.Type() {
			return false
		}
		for i := 0; i < a.NumField(); i++ {
			if !a.Type().Field(i).IsExported() {
				continue
			}
			if !equalValue(a.Field(i), b.Field(i), path, depth+1) {
				return false
			}
		}
		return true

	default:
		// Channels, funcs and friends are not JSON-like values.
		return false
	}
}

// equalThroughPointers dereferences pointer values with the same cycle
// bookkeeping as containers, so self-referential linked structures terminate
// instead of overflowing the stack.
func equalThroughPointers(a, b reflect.Value, path *pathState, depth int) bool {
	if a.Kind() == reflect.Pointer && a.IsNil() {
		a = reflect.Value{}
	}
	if b.Kind() == reflect.Pointer && b.IsNil() {
		b = reflect.Value{}
	}

	aPtr := a.IsValid() && a.Kind() == reflect.Pointer
	bPtr := b.IsValid() && b.Kind() == reflect.Pointer
	if !aPtr && !bPtr {
		return equalValue(a, b, path, depth)
	}

	var pa, pb uintptr
	var da, db int
	var onA, onB bool
	if aPtr {
		pa = a.Pointer()
		da, onA = path.a[pa]
	}
	if bPtr {
		pb = b.Pointer()
		db, onB = path.b[pb]
	}
	if onA || onB {
		return onA && onB && da == db
	}

	if aPtr {
		path.a[pa] = depth
		defer delete(path.a, pa)
		a = a.Elem()
	}
	if bPtr {
		path.b[pb] = depth
		defer delete(path.b, pb)
		b = b.Elem()
	}
	return equalValue(a, b, path, depth+1)
}

// enterPair applies the cycle check for a pair of container references and,
// when no cycle is detected, records them on the path. The first return
// value is true when the caller should short-circuit with the second.
func enterPair(pa, pb uintptr, path *pathState, depth int) (bool, bool) {
	da, onA := path.a[pa]
	db, onB := path.b[pb]
	if onA || onB {
		// Equal only when both sides cycle back to the same position.
		return true, onA && onB && da == db
	}
	path.a[pa] = depth
	path.b[pb] = depth
	return false, false
}

func leavePair(pa, pb uintptr, path *pathState) {
	delete(path.a, pa)
	delete(path.b, pb)
}

// stripInterface unwraps interface indirection. Nil interfaces unwrap to the
// invalid value.
func stripInterface(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func asFloat(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

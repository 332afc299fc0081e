// Package state provides the per-execution storage workflow steps use to
// hand values to each other.
//
// A Bag holds at most one value per static type. Steps that want to avoid
// collisions with other steps should store distinct wrapper types rather than
// shared primitives:
//
//	type ReviewersRequested []string
//
//	state.Insert(bag, ReviewersRequested{"octocat"})
//	reviewers, ok := state.Get[ReviewersRequested](bag)
//
// A Bag is owned by a single workflow execution and is not safe for
// concurrent use.
package state

import (
	"errors"
	"reflect"
)

// ErrNilBag is the panic value of Insert on a nil *Bag. Len, Get and GetMut
// treat a nil *Bag as empty.
var ErrNilBag = errors.New("state: Insert on nil Bag")

// Bag maps a type to the single value of that type stored in it.
type Bag struct {
	values map[reflect.Type]any
}

// New returns an empty Bag.
func New() *Bag {
	return &Bag{values: make(map[reflect.Type]any)}
}

// Len reports how many distinct types are stored.
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.values)
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Insert stores v under its type T, returning the value it replaced.
// Unlike the read accessors, Insert needs somewhere to write: a nil b panics
// with ErrNilBag. A zero Bag is ready to use.
func Insert[T any](b *Bag, v T) (T, bool) {
	if b == nil {
		panic(ErrNilBag)
	}
	if b.values == nil {
		b.values = make(map[reflect.Type]any)
	}
	key := keyOf[T]()
	boxed := &v

	prev, found := b.values[key]
	b.values[key] = boxed
	if !found {
		var zero T
		return zero, false
	}
	old, ok := prev.(*T)
	if !ok {
		var zero T
		return zero, false
	}
	return *old, true
}

// Get returns a copy of the value stored for type T.
func Get[T any](b *Bag) (T, bool) {
	p, ok := GetMut[T](b)
	if !ok {
		var zero T
		return zero, false
	}
	return *p, true
}

// GetMut returns a pointer to the stored value so callers can update it in
// place. A stored value that is not a T is reported as absent.
func GetMut[T any](b *Bag) (*T, bool) {
	if b == nil || b.values == nil {
		return nil, false
	}
	boxed, ok := b.values[keyOf[T]()]
	if !ok {
		return nil, false
	}
	p, ok := boxed.(*T)
	return p, ok
}

// Package blackboard implements the typed, append-oriented workspace that an
// Agent Process uses as its single source of truth. Bindings are keyed by
// name; each bound value carries the fully-qualified type name captured at
// write time, so readers can look values up either by name or by type.
package blackboard

import "sync"

// DefaultBinding is the reserved binding name round-tripped unchanged by
// single-input/output agent entry points.
const DefaultBinding = "it"

// TypeNamer is implemented by values that want to control the type name
// captured on bind. Values that do not implement TypeNamer are named by
// their Go type via reflection at bind time (see TypeName).
type TypeNamer interface {
	TypeName() string
}

// entry pairs a bound value with the type name captured when it was written.
type entry struct {
	name     string
	value    any
	typeName string
}

// Blackboard is a thread-safe mapping from binding name to value. Values are
// treated as immutable once bound: writers replace the entry under a name
// rather than mutating it in place, and readers receive the stored value
// directly (callers must not mutate values obtained from the blackboard).
//
// Invariant (I1): at most one value is stored per binding name.
// Invariant (I2): the default binding "it" is reserved for single-input and
// single-output agent entry points.
type Blackboard struct {
	mu sync.RWMutex
	// order preserves insertion order of binding names for insertion-order
	// scans (firstValueOfType, Objects). Re-binding an existing name does not
	// change its position.
	order   []string
	entries map[string]entry
}

// New returns an empty Blackboard ready for use.
func New() *Blackboard {
	return &Blackboard{entries: make(map[string]entry)}
}

// Bind records value under name, capturing its runtime type name. A previous
// value under the same name is overwritten; no history is kept per binding.
func (b *Blackboard) Bind(name string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.entries[name]; !exists {
		b.order = append(b.order, name)
	}
	b.entries[name] = entry{name: name, value: value, typeName: TypeName(value)}
}

// Get returns the value bound under name, if any.
func (b *Blackboard) Get(name string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[name]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// GetTyped returns the value bound under name only if its captured type name
// equals typeName. This lets callers assert a binding's shape without
// depending on Go's static type system (e.g. when values cross a codec
// boundary).
func (b *Blackboard) GetTyped(name, typeName string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[name]
	if !ok || e.typeName != typeName {
		return nil, false
	}
	return e.value, true
}

// FirstValueOfType scans bindings in insertion order and returns the first
// value whose captured type name equals typeName. Action-input resolution
// uses this to find an unnamed input by declared type.
func (b *Blackboard) FirstValueOfType(typeName string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, name := range b.order {
		e := b.entries[name]
		if e.typeName == typeName {
			return e.value, true
		}
	}
	return nil, false
}

// Object pairs a bound value with its binding name and captured type name,
// as returned by Objects.
type Object struct {
	Name     string
	TypeName string
	Value    any
}

// Objects returns a snapshot of all bindings in insertion order.
func (b *Blackboard) Objects() []Object {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Object, 0, len(b.order))
	for _, name := range b.order {
		e := b.entries[name]
		out = append(out, Object{Name: e.name, TypeName: e.typeName, Value: e.value})
	}
	return out
}

// HasType reports whether any binding currently carries typeName. Goals use
// this to test their postcondition (§4: "a goal is satisfied iff at least
// one binding of the goal's declared output type is present").
func (b *Blackboard) HasType(typeName string) bool {
	_, ok := b.FirstValueOfType(typeName)
	return ok
}

// Names returns the set of bound binding names in insertion order.
func (b *Blackboard) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrUnregistered is returned when marshaling a value whose Go type has
	// not been registered.
	ErrUnregistered = errors.New("type not registered")

	// ErrUnknownType is returned when an envelope names a type the registry
	// does not know.
	ErrUnknownType = errors.New("unknown type name")
)

// envelope is the stored form of a registered value.
type envelope struct {
	Type string             `msgpack:"t"`
	Body msgpack.RawMessage `msgpack:"b"`
}

type registration struct {
	typ     reflect.Type // type to allocate on decode
	pointer bool         // registered as *T: return the pointer, not the value
}

// Registry maps stable type names to Go types.
//
// Thread-safety: safe for concurrent use. Registration normally happens once
// at startup, before any transaction is submitted.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]registration
	byType map[reflect.Type]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]registration),
		byType: make(map[reflect.Type]string),
	}
}

// Register binds name to T. T may be a struct type or a pointer to one;
// Unmarshal returns values of exactly T.
//
// Registering the same name and type twice is a no-op. Reusing a name for a
// different type, or a type under a different name, is an error.
func Register[T any](r *Registry, name string) error {
	t := reflect.TypeFor[T]()
	if name == "" {
		return fmt.Errorf("register %s: empty name", t)
	}

	reg := registration{typ: t}
	if t.Kind() == reflect.Pointer {
		reg = registration{typ: t.Elem(), pointer: true}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byName[name]; ok {
		if existing == reg {
			return nil
		}
		return fmt.Errorf("register %s: name %q already bound to %s", t, name, existing.typ)
	}
	if existing, ok := r.byType[t]; ok {
		return fmt.Errorf("register %s: already registered as %q", t, existing)
	}

	r.byName[name] = reg
	r.byType[t] = name
	return nil
}

// MustRegister is Register that panics on error. Intended for init-time
// registration of a fixed set of types.
func MustRegister[T any](r *Registry, name string) {
	if err := Register[T](r, name); err != nil {
		panic(err)
	}
}

// NameOf returns the registered name of v's dynamic type.
func (r *Registry) NameOf(v any) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[reflect.TypeOf(v)]
	return name, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal encodes v together with its registered type name.
func (r *Registry) Marshal(v any) ([]byte, error) {
	name, ok := r.NameOf(v)
	if !ok {
		return nil, fmt.Errorf("marshal %T: %w", v, ErrUnregistered)
	}

	body, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", name, err)
	}

	data, err := msgpack.Marshal(envelope{Type: name, Body: body})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", name, err)
	}
	return data, nil
}

// Unmarshal decodes data into a fresh value of the type named in its
// envelope.
func (r *Registry) Unmarshal(data []byte) (any, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	r.mu.RLock()
	reg, ok := r.byName[env.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unmarshal %q: %w", env.Type, ErrUnknownType)
	}

	ptr := reflect.New(reg.typ)
	if err := msgpack.Unmarshal(env.Body, ptr.Interface()); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Type, err)
	}
	if reg.pointer {
		return ptr.Interface(), nil
	}
	return ptr.Elem().Interface(), nil
}

// TypeName returns the type name stored in an envelope without decoding the
// body. It needs no registry, which lets tools inspect journals of any
// application.
func TypeName(data []byte) (string, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("read envelope: %w", err)
	}
	return env.Type, nil
}

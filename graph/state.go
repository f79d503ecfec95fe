//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Reducer combines the current value of a field with an update. existing
// is nil when the field is not yet populated.
type Reducer func(existing, update any) (any, error)

// ReplaceReducer replaces the whole value.
func ReplaceReducer(_, update any) (any, error) {
	return update, nil
}

// AppendReducer concatenates slices, keeping existing entries first. The
// result never shares a backing array with either input.
func AppendReducer(existing, update any) (any, error) {
	uv := reflect.ValueOf(update)
	if uv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("append reducer expects a slice, got %T", update)
	}
	if existing == nil {
		out := reflect.MakeSlice(uv.Type(), uv.Len(), uv.Len())
		reflect.Copy(out, uv)
		return out.Interface(), nil
	}
	ev := reflect.ValueOf(existing)
	if ev.Type() != uv.Type() {
		return nil, fmt.Errorf("append reducer cannot combine %T with %T", existing, update)
	}
	out := reflect.MakeSlice(ev.Type(), ev.Len()+uv.Len(), ev.Len()+uv.Len())
	reflect.Copy(out, ev)
	reflect.Copy(out.Slice(ev.Len(), out.Len()), uv)
	return out.Interface(), nil
}

// ValueValidator checks the shape of a field value beyond its Go type.
// *jsonschema.Validator satisfies it.
type ValueValidator interface {
	ValidateValue(value any) error
}

// StateField declares one field of the state.
type StateField struct {
	// Type is the Go type values must be assignable to.
	Type reflect.Type
	// Reducer merges updates; nil means ReplaceReducer.
	Reducer Reducer
	// Default, when set, populates the field at seed time.
	Default func() any
	// Required fields must be present in the seed state.
	Required bool
	// Immutable fields cannot change once populated.
	Immutable bool
	// Validator optionally checks every written value.
	Validator ValueValidator
}

// StateSchema declares the fields of a state and how updates merge.
type StateSchema struct {
	fields map[string]StateField
}

// NewStateSchema creates an empty schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{fields: make(map[string]StateField)}
}

// AddField declares a field.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	if field.Reducer == nil {
		field.Reducer = ReplaceReducer
	}
	s.fields[name] = field
	return s
}

// Field returns the declaration of name.
func (s *StateSchema) Field(name string) (StateField, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns the declared field names in sorted order.
func (s *StateSchema) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Seed validates an initial state and applies defaults. The input is not
// modified.
func (s *StateSchema) Seed(initial State) (State, error) {
	seeded := make(State, len(s.fields))
	for _, name := range s.Fields() {
		field := s.fields[name]
		v, present := initial[name]
		if !present || v == nil {
			if field.Required {
				return nil, &ValidationError{Field: name, Reason: "required field missing from seed"}
			}
			if field.Default != nil {
				seeded[name] = field.Default()
			}
			continue
		}
		if err := s.check(name, field, v); err != nil {
			return nil, err
		}
		if field.Reducer != nil {
			merged, err := field.Reducer(nil, v)
			if err != nil {
				return nil, &ValidationError{Field: name, Reason: "cannot seed value", Cause: err}
			}
			v = merged
		}
		seeded[name] = v
	}
	for _, key := range sortedStateKeys(initial) {
		if _, declared := s.fields[key]; !declared {
			return nil, &ValidationError{Field: key, Reason: "field is not declared in the schema"}
		}
	}
	return seeded, nil
}

// Merge applies update to state through each field's reducer and returns
// the merged state. state itself is left untouched. Populated fields can
// never be cleared, and immutable fields never change.
func (s *StateSchema) Merge(state, update State) (State, error) {
	merged := state.Clone()
	for _, key := range sortedStateKeys(update) {
		v := update[key]
		if strings.HasPrefix(key, reservedPrefix) {
			return nil, &ValidationError{Field: key, Reason: "reserved field"}
		}
		field, ok := s.fields[key]
		if !ok {
			return nil, &ValidationError{Field: key, Reason: "field is not declared in the schema"}
		}
		if v == nil {
			return nil, &ValidationError{Field: key, Reason: "nil value would clear the field"}
		}
		if err := s.check(key, field, v); err != nil {
			return nil, err
		}
		existing := merged[key]
		if field.Immutable && existing != nil {
			if !reflect.DeepEqual(existing, v) {
				return nil, &ValidationError{Field: key, Reason: "field is immutable once populated"}
			}
			continue
		}
		out, err := field.Reducer(existing, v)
		if err != nil {
			return nil, &ValidationError{Field: key, Reason: "reducer failed", Cause: err}
		}
		merged[key] = out
	}
	return merged, nil
}

func (s *StateSchema) check(name string, field StateField, v any) error {
	if field.Type != nil && !reflect.TypeOf(v).AssignableTo(field.Type) {
		return &ValidationError{
			Field:  name,
			Reason: fmt.Sprintf("expected %s, got %T", field.Type, v),
		}
	}
	if field.Validator != nil {
		if err := field.Validator.ValidateValue(v); err != nil {
			return &ValidationError{Field: name, Reason: "value does not match its schema", Cause: err}
		}
	}
	return nil
}

func sortedStateKeys(s State) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Store owns the state of a single run. It is not safe for concurrent use.
type Store struct {
	schema *StateSchema
	state  State
}

// NewStore validates seed against schema and returns a store holding it.
func NewStore(schema *StateSchema, seed State) (*Store, error) {
	state, err := schema.Seed(seed)
	if err != nil {
		return nil, err
	}
	return &Store{schema: schema, state: state}, nil
}

// Merge folds update into the store. On error the store is unchanged.
func (s *Store) Merge(update State) error {
	merged, err := s.schema.Merge(s.state, update)
	if err != nil {
		return err
	}
	s.state = merged
	return nil
}

// HasField reports whether key is populated.
func (s *Store) HasField(key string) bool {
	return s.state.Has(key)
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	return s.state.Clone()
}

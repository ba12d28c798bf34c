// Package domain contains pure, dependency-light models for ranking
// semi-leptonic top-pair fit hypotheses.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string identifier.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys written and read by the processing stages.
var (
	// KeyEvent stores the input event snapshot.
	KeyEvent = Key[Event]{"event"}

	// KeyExecutionID stores the identifier of this processing run, used to
	// correlate logs, spans and output.
	KeyExecutionID = Key[string]{"execution.execution_id"}

	// KeyJetCount stores how many jets were handed to the fit engine.
	KeyJetCount = Key[int]{"fit.jet_count"}

	// KeyFitResults stores the raw per-permutation engine output.
	KeyFitResults = Key[[]FitResult]{"fit.results"}

	// KeyCandidates stores hypotheses built from well-formed permutations,
	// before convergence filtering.
	KeyCandidates = Key[[]Hypothesis]{"hypotheses.candidates"}

	// KeyHypotheses stores the hypotheses that will be emitted.
	KeyHypotheses = Key[[]Hypothesis]{"hypotheses.emitted"}

	// KeyPermutationStats stores the permutation bookkeeping.
	KeyPermutationStats = Key[PermutationStats]{"fit.permutation_stats"}

	// KeyFallbackReason is set once the event is routed to the fallback
	// policy. Stages after the precondition check skip their work when it is
	// present.
	KeyFallbackReason = Key[FallbackReason]{"fallback.reason"}

	// KeyPhases stores the ordered phase trail of the event.
	KeyPhases = Key[[]Phase]{"execution.phases"}
)

// deepCopyValue creates a deep copy of a value to ensure true immutability.
// It handles slices, maps, and other reference types that would otherwise
// allow external modification of State data.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return value
		}
		newSlice := reflect.MakeSlice(v.Type(), v.Len(), v.Cap())
		for i := 0; i < v.Len(); i++ {
			newSlice.Index(i).Set(reflect.ValueOf(deepCopyValue(v.Index(i).Interface())))
		}
		return newSlice.Interface()

	case reflect.Map:
		if v.IsNil() {
			return value
		}
		newMap := reflect.MakeMap(v.Type())
		for _, key := range v.MapKeys() {
			copiedValue := deepCopyValue(v.MapIndex(key).Interface())
			newMap.SetMapIndex(key, reflect.ValueOf(copiedValue))
		}
		return newMap.Interface()

	case reflect.Ptr:
		if v.IsNil() {
			return v.Interface()
		}
		newPtr := reflect.New(v.Elem().Type())
		newPtr.Elem().Set(reflect.ValueOf(deepCopyValue(v.Elem().Interface())))
		return newPtr.Interface()

	case reflect.Struct:
		// Unexported fields keep their zero value; every domain type
		// stored in State exports its fields.
		newStruct := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if newStruct.Field(i).CanSet() {
				newStruct.Field(i).Set(reflect.ValueOf(deepCopyValue(v.Field(i).Interface())))
			}
		}
		return newStruct.Interface()

	default:
		// Scalars and fixed-size arrays of scalars are copied by value.
		return value
	}
}

// State is an immutable bag of per-event data that flows through the
// processing stages. It uses copy-on-write semantics, so a State can be read
// from several goroutines while each stage derives its own successor.
type State struct {
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and contains a value of the correct type. The returned value is a deep
// copy to maintain immutability.
//
// Example:
//
//	event, ok := Get(state, KeyEvent)
//	if !ok {
//	    // handle missing value
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// With creates a new State with the specified key-value pair added or
// updated, leaving the original unchanged.
//
// Example:
//
//	next := With(state, KeyJetCount, 5)
func With[T any](s State, key Key[T], value T) State {
	newData := maps.Clone(s.data)
	if newData == nil {
		newData = make(map[string]any)
	}
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// Has reports whether key is present in the State.
func Has[T any](s State, key Key[T]) bool {
	_, ok := s.data[key.name]
	return ok
}

// WithPhase appends a phase to the trail stored under KeyPhases.
func WithPhase(s State, phase Phase) State {
	phases, _ := Get(s, KeyPhases)
	return With(s, KeyPhases, append(phases, phase))
}

// FallbackReasonOf returns the fallback reason recorded in s, or
// FallbackNone when the event is still on the fit path.
func FallbackReasonOf(s State) FallbackReason {
	reason, _ := Get(s, KeyFallbackReason)
	return reason
}

// Keys returns all keys present in the State in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}

package sqlbook

import (
	"fmt"
)

// Named is a set of query arguments by placeholder name
type Named map[string]any

// Positional is a set of query arguments in order of first placeholder appearance
type Positional []any

// UnusedParameters is the policy for supplied argument values that bind to no placeholder
//
// can be passed as an option to FromString or Load
type UnusedParameters int

const (
	// IgnoreUnused silently drops unused values (the default)
	IgnoreUnused UnusedParameters = iota
	// ErrorOnUnused fails binding with an *UnusedParameterError
	ErrorOnUnused
)

type boundArgs struct {
	named      map[string]any
	positional []any
	isNamed    bool
}

func normalizeArgs(args any) (result boundArgs, err error) {
	switch a := args.(type) {
	case nil:
	case Named:
		result.named, result.isNamed = a, true
	case map[string]any:
		result.named, result.isNamed = a, true
	case Positional:
		result.positional = a
	case []any:
		result.positional = a
	default:
		err = fmt.Errorf("%w: unsupported type %T", ErrInvalidArgs, args)
	}
	return result, err
}

// normalizeBulk splits bulk arguments into one argument set per row
func normalizeBulk(args any) ([]boundArgs, error) {
	var sets []any
	switch a := args.(type) {
	case nil:
		return nil, nil
	case []Named:
		sets = make([]any, len(a))
		for i, v := range a {
			sets[i] = v
		}
	case []map[string]any:
		sets = make([]any, len(a))
		for i, v := range a {
			sets[i] = v
		}
	case []Positional:
		sets = make([]any, len(a))
		for i, v := range a {
			sets[i] = v
		}
	case [][]any:
		sets = make([]any, len(a))
		for i, v := range a {
			sets[i] = v
		}
	case []any:
		sets = a
	default:
		return nil, fmt.Errorf("%w: unsupported bulk type %T", ErrInvalidArgs, args)
	}
	result := make([]boundArgs, 0, len(sets))
	for i, set := range sets {
		if set == nil {
			return nil, fmt.Errorf("%w: nil parameter set at index %d", ErrInvalidArgs, i)
		}
		ba, err := normalizeArgs(set)
		if err != nil {
			return nil, err
		}
		result = append(result, ba)
	}
	return result, nil
}

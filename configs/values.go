package configs

import (
	"errors"
	"iter"
)

// First decodes the value at path from the most specific file that sets it.
// ok is false when no file does.
func First[T any](loader Loader, path string) (value T, ok bool, err error) {
	var zero T
	err = loader.AssignFirst(path, &value)
	if errors.Is(err, ErrValueNotFound) {
		return zero, false, nil
	} else if err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// All decodes the value at path from every file that sets it, most specific
// file first. Iteration stops after the first error.
func All[T any](loader Loader, path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for value, err := range loader.IterCueValues(path) {
			var v T
			if err == nil {
				err = value.Decode(&v)
			}
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

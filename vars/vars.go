// Package vars holds small generic helpers shared by the flag and config
// layers.
package vars

import "strings"

// DerefOrZero reads an optional value.
func DerefOrZero[T any](ptr *T) (ret T) {
	if ptr == nil {
		return
	}
	return *ptr
}

// FirstNonZero picks the highest priority setting that is present.
func FirstNonZero[T comparable](values ...T) T {
	var zero T
	for _, value := range values {
		if value != zero {
			return value
		}
	}
	return zero
}

// StrToBool parses a command line boolean. Unknown words are false.
func StrToBool(str string) bool {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "true", "t", "yes", "y", "on", "1":
		return true
	}
	return false
}

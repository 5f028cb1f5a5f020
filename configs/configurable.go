package configs

// Configurable is a typed setting read from config files. ConfigPath is its
// cue path.
type Configurable interface {
	ConfigPath() string
}

// Lookup decodes the first value at T's path.
func Lookup[T Configurable](loader Loader) (value T, ok bool, err error) {
	var zero T
	return First[T](loader, zero.ConfigPath())
}

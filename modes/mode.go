package modes

type Mode uint8

const (
	ModeProduction Mode = iota + 1
	ModeDevelopment
)

func (m Mode) String() string {
	switch m {
	case ModeProduction:
		return "production"
	case ModeDevelopment:
		return "development"
	}
	return "unknown"
}

// Checked reports whether expensive consistency checks, like verifying the
// heap after every collection, should run.
func (m Mode) Checked() bool {
	return m == ModeDevelopment
}

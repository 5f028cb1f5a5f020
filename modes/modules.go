package modes

import (
	"testing"

	"github.com/reusee/dscope"
)

// ModuleFor provides the Mode, and the *testing.T when running under go test.
type ModuleFor struct {
	dscope.Module
	mode Mode
	t    *testing.T
}

func ForProduction() ModuleFor {
	return ModuleFor{
		mode: ModeProduction,
	}
}

// ForDevelopment turns on the checks a production run skips.
func ForDevelopment() ModuleFor {
	return ModuleFor{
		mode: ModeDevelopment,
	}
}

func ForTest(t *testing.T) ModuleFor {
	return ModuleFor{
		mode: ModeDevelopment,
		t:    t,
	}
}

func (m ModuleFor) T() *testing.T {
	return m.t
}

func (m ModuleFor) Mode() Mode {
	return m.mode
}

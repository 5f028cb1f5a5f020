package schemeconfigs

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taischeme/logs"
)

type Module struct {
	dscope.Module
	Logs logs.Module
}

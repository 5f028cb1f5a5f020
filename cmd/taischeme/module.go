package main

import (
	"github.com/reusee/dscope"
	"github.com/reusee/taischeme/taischeme"
)

type Module struct {
	dscope.Module
	Scheme taischeme.Module
}

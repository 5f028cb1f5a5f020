package cmds

// Var defines name as a flag taking one value, and name+"." as a flag that
// clears it.
func Var[T any](name string) *T {
	var value T
	Define(name, Func(func(v T) {
		value = v
	}))
	var zero T
	Define(name+".", Func(func() {
		value = zero
	}).Desc("clear "+name))
	return &value
}

// Switch defines name to turn a setting on and !name to turn it off.
func Switch(name string) *bool {
	var value bool
	Define(name, Func(func() {
		value = true
	}))
	Define("!"+name, Func(func() {
		value = false
	}).Desc("turn off "+name))
	return &value
}

// Collect defines name as a repeatable flag. Values accumulate in order,
// name+"." drops the ones given so far.
func Collect[T any](name string) *[]T {
	var value []T
	Define(name, Func(func(v T) {
		value = append(value, v)
	}))
	Define(name+".", Func(func() {
		value = nil
	}).Desc("clear "+name))
	return &value
}

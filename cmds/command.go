package cmds

import (
	"fmt"
	"reflect"
)

// Command is a named action. Func consumes positional arguments, Subs are
// commands that become available once this one has run.
type Command struct {
	Func        reflect.Value
	Subs        map[string]*Command
	Description string
	Aliases     []string
}

func (c *Command) Desc(desc string) *Command {
	c.Description = desc
	return c
}

func (c *Command) Alias(names ...string) *Command {
	c.Aliases = append(c.Aliases, names...)
	return c
}

// Func wraps fn, which must return nothing or a single error.
func Func(fn any) *Command {
	fnValue := reflect.ValueOf(fn)
	if fnValue.Kind() != reflect.Func {
		panic(fmt.Errorf("must be function, got %T", fn))
	}
	switch fnType := fnValue.Type(); {
	case fnType.NumOut() > 1:
		panic(fmt.Errorf("must return 0 or 1 value"))
	case fnType.NumOut() == 1 && fnType.Out(0) != errorType:
		panic(fmt.Errorf("must return error"))
	}
	return &Command{
		Func: fnValue,
	}
}

func Sub(subs map[string]*Command) *Command {
	return &Command{
		Subs: subs,
	}
}

package cmds

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// PrintUsage lists every command with its aliases and description,
// sub commands indented under their parent.
func (p *Executor) PrintUsage() {
	printCommands(p, p.commands, 0)
}

func printCommands(p *Executor, commands map[string]*Command, depth int) {
	// aliases share the command value, list each command once
	names := make(map[*Command][]string)
	var order []*Command
	for name, command := range commands {
		if command == nil {
			continue
		}
		if _, ok := names[command]; !ok {
			order = append(order, command)
		}
		names[command] = append(names[command], name)
	}
	for _, command := range order {
		slices.Sort(names[command])
	}
	slices.SortFunc(order, func(a, b *Command) int {
		return strings.Compare(names[a][0], names[b][0])
	})

	indent := strings.Repeat("  ", depth)
	for _, command := range order {
		line := indent + strings.Join(names[command], ", ")
		if args := argsHint(command); args != "" {
			line += " " + args
		}
		if command.Description != "" {
			line += "\t" + command.Description
		}
		fmt.Fprintln(p.Output, line)
		if len(command.Subs) > 0 {
			printCommands(p, command.Subs, depth+1)
		}
	}
}

func argsHint(command *Command) string {
	if !command.Func.IsValid() {
		return ""
	}
	var parts []string
	fnType := command.Func.Type()
	for i := range fnType.NumIn() {
		t := fnType.In(i)
		if t.Kind() == reflect.Pointer {
			parts = append(parts, "["+t.Elem().Kind().String()+"]")
		} else {
			parts = append(parts, "<"+t.Kind().String()+">")
		}
	}
	return strings.Join(parts, " ")
}

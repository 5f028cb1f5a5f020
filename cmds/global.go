package cmds

// GlobalExecutor holds the commands and flags defined by package init
// functions across the program.
var GlobalExecutor = NewExecutor()

func Define(name string, command *Command) {
	GlobalExecutor.Define(name, command)
}

func Execute(args []string) error {
	return GlobalExecutor.Execute(args)
}

func PrintUsage() {
	GlobalExecutor.PrintUsage()
}

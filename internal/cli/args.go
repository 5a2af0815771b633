package cli

import "github.com/MOHAMEDVOS/vos-tool-sub000/internal/flagx"

// valueFlags are the configuration flags that take a separate value.
var valueFlags = []string{
	"-a", "-D", "-d", "-s", "-t", "-o", "-k",
	"-l", "-u", "-p", "-b", "-g", "-e",
	"-c", "-config",
}

// CommandArgs drops the configuration flags from args, leaving the command
// and its operands.
func CommandArgs(args []string) []string {
	return flagx.Operands(args, valueFlags)
}

package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit builds the error returned by a command action to end the process
// with the given code.
func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}

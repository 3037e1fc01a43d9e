// Command restgate runs gateway operations and conformance scenarios from
// the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/roach88/restgate/internal/cli"
	"github.com/roach88/restgate/internal/logger"
)

func main() {
	logger.Initialize()
	defer func() { _ = zap.L().Sync() }()

	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own failures before returning an ExitError.
	// Anything else is an argument or flag error from cobra.
	code := cli.GetExitCode(err)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code = cli.ExitCommandError
	}
	_ = zap.L().Sync()
	os.Exit(code)
}

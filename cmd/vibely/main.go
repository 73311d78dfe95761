package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vibely/vibely/internal/cli"
)

func main() {
	err := cli.Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.ExitCode(err))
}

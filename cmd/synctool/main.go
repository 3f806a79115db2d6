// Command synctool synchronizes records between tracking systems.
package main

import (
	"fmt"
	"os"

	"github.com/Thox33/sync-tool/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

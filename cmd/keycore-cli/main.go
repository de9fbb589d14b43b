// keycore-cli is a command-line client for a running keycored.
package main

import (
	"os"

	"github.com/Klingon-tech/klingnet-keycore/cmd/keycore-cli/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

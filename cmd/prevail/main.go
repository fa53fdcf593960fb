// Command prevail inspects and drives prevalent systems.
package main

import (
	"os"

	"github.com/roach88/prevail/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}

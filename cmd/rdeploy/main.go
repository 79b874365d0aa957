package main

import (
	"os"

	"github.com/andrej220/rdeploy/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

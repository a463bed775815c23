package main

import (
	"os"

	"github.com/roach88/drill/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import (
	"os"

	"github.com/cimillas/live-commerce/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}

package main

import (
	"fmt"
	"os"

	"github.com/danbrakeley/dromos/internal/cli"
	"github.com/danbrakeley/dromos/internal/format"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, format.ErrStyle.Render(fmt.Sprintf("Error: %v", err)))
		os.Exit(1)
	}
}

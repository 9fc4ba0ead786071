package main

import (
	"fmt"
	"os"

	"roulette/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "drawctl:", err)
		os.Exit(1)
	}
}

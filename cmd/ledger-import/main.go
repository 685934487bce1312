package main

import (
	"fmt"
	"os"

	"teamledger/internal/cli"
)

func main() {
	cli.LoadEnvFile()
	if err := cli.ExecuteImport(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"usertasks/cli"
)

func main() {
	if err := cli.NewRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "usertasks:", err)
		os.Exit(1)
	}
}

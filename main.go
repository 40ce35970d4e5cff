// Package main is the entrypoint for the Warden CLI.
// It delegates all command handling to the cmd package.
package main

import (
	"os"

	"github.com/toyinlola/warden/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}

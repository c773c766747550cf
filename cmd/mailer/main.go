/*
Package main provides the command line client for the mailer server.
*/
package main

import (
	"os"

	"github.com/unclebandit/smart-mailer/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

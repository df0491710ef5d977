// Package main runs the focus agent as a Chrome native-messaging host. The browser
// extension starts it and exchanges messages over stdin/stdout; logs go to stderr.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Command executor runs the flash-arb bot executor: it loads the bot
// configuration, keeps it live-reloadable, and serves health, status and
// admin endpoints until interrupted.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

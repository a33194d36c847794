//go:build !windows

package reload

import (
	"os"
	"syscall"
)

// reloadSignals returns SIGHUP, the conventional "re-read your config" signal.
func reloadSignals() []os.Signal {
	return []os.Signal{syscall.SIGHUP}
}

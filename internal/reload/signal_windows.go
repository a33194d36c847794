//go:build windows

package reload

import "os"

// reloadSignals returns nothing since SIGHUP is not available on Windows.
// Config reload is still supported via the file watcher and admin API.
func reloadSignals() []os.Signal {
	return nil
}

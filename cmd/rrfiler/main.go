// Command rrfiler drives the filing lifecycle from the shell. Cron runs
// `rrfiler poll` for scheduled poll cycles.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(defaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

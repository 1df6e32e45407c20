// Command solidtype drives the core engine from the shell: one-shot
// rebuilds, rebuild-on-save watching, the websocket rebuild host, and
// exports.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

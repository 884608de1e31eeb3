// Command circulationd runs the circulation service: an HTTP API over the
// inventory ledger, issue record store and circulation engine, backed by
// PostgreSQL.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

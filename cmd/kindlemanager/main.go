// Command kindlemanager inspects, edits and catalogs ePub and MOBI books.
//
// Logging:
//   - The base logger is configured once from --debug/--human or the config
//   - Commands pass it down through the context
//   - Book warnings and scan progress are logged, results go to stdout
package main

import (
	"context"
	"os"
	"os/signal"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// Command pcldump decodes PCL and PJL print jobs from files or a serial line
// and prints one line per command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "pcldump: %v\n", err)
		stop()
		os.Exit(1)
	}
}

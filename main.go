// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/Badis-tech/autoapply/cmd"
)

func main() {
	// A SIGINT/SIGTERM cancels the command context so in-flight sessions can
	// close their pages before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.ExecuteContext(ctx)
}

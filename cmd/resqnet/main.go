// Command resqnet is the terminal client for the ResQNet relief API. It keeps
// one login under $RESQNET_HOME and gates every subcommand by role before
// calling the API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

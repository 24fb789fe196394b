// insitu - an in-situ network tester: a callback-echo server and the
// probe that exercises it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"insitu/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "insitu: %v\n", err)
		os.Exit(1)
	}
}

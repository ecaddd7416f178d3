package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sokinpui/aipatch/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return
	}
	if detailed, ok := cli.IsDetailed(err); ok {
		fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	stop()
	os.Exit(1)
}

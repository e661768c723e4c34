package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pirateradio/internal/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "path to station config (yaml or json)")
	flag.Parse()

	a, err := app.New(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pirateradio:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pirateradio:", err)
		a.Stop()
		os.Exit(1)
	}

	<-ctx.Done()
	stop()
	a.Stop()
}

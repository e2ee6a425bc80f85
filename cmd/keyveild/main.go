package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/keyveil/internal/cliopts"
	"github.com/bnema/keyveil/internal/daemon"
	"github.com/bnema/keyveil/internal/logger"
)

func main() {
	err := cliopts.Parse(os.Args[1:], runDaemon)
	if err == nil {
		return
	}

	switch err.(type) {
	case *daemon.FatalInitError, *daemon.FatalInvariantError:
		logger.Errorf("FATAL ERROR: %v", err)
	default:
		logger.Errorf("%v", err)
	}
	os.Exit(1)
}

func runDaemon(opts daemon.Options) error {
	d, err := daemon.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warnf("keyveild: cleanup: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return d.Run(ctx)
}

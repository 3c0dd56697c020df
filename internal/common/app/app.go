package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ShutdownSignals are the process signals that trigger a graceful shutdown.
var ShutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}

// CreateContextWithShutdown returns a context that will report done when SIGINT, SIGTERM or SIGQUIT is received
func CreateContextWithShutdown() context.Context {
	ctx, _ := CreateCancellableContextWithShutdown(context.Background())
	return ctx
}

// CreateCancellableContextWithShutdown is CreateContextWithShutdown with a caller-supplied parent and a cancel
// func that also releases the signal handler.
func CreateCancellableContextWithShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	c := make(chan os.Signal, 1)
	signal.Notify(c, ShutdownSignals...)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Infof("%s received; shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

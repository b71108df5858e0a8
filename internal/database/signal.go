package database

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WithSignals returns a context that is canceled on SIGTERM or SIGINT.
// onSignal, when not nil, runs before the cancel. A canceled context makes
// the next query fail, which aborts the dump. The returned stop function
// releases the signal registration and cancels the context.
func WithSignals(parent context.Context, onSignal func(os.Signal)) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		select {
		case sig := <-sigChan:
			if onSignal != nil {
				onSignal(sig)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigChan)
		cancel()
	}
	return ctx, stop
}

package exec

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var forwarded = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// forwardSignals relays interrupts received by this process to the child
// until the returned stop function is called or ctx ends.
func forwardSignals(ctx context.Context, process *os.Process) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, forwarded...)

	done := make(chan struct{})

	go func() {
		for {
			select {
			case sig := <-sigChan:
				_ = process.Signal(sig)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigChan)
		close(done)
	}
}

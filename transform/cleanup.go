package transform

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/relloyd/sparkify/engine"
	"github.com/relloyd/sparkify/logger"
)

// HandleSignals shuts down sess when CTRL-C or SIGTERM is received.
// Call the returned function to stop listening.
func HandleSignals(log logger.Logger, sess *engine.Session) (stop func()) {
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case x := <-c: // wait for interrupt.
			log.Info("Caught ", x.String())
			sess.Shutdown() // signal running step groups to shutdown.
		case <-done:
		}
	}()
	return func() {
		signal.Stop(c)
		close(done)
	}
}

package container

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// CloseOnSignal closes c when the process receives one of sigs (SIGINT and
// SIGTERM by default). The returned stop function cancels the hook without
// closing the container.
//
//	stop := container.CloseOnSignal(c)
//	defer stop()
func CloseOnSignal(c *Container, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	go func() {
		select {
		case sig := <-ch:
			c.log.WithField("signal", sig.String()).Info("closing container")
			if err := c.Close(); err != nil {
				c.log.Errorf("close: %v", err)
			}
		case <-done:
		}
		signal.Stop(ch)
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

package background

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs fire-and-forget tasks, keeping track of them so the
// server can drain on shutdown.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

func (b *Background) Add(fn func() error) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithFields(logrus.Fields{
					"panic": rec,
					"trace": string(debug.Stack()),
				}).Error("background task panicked")
			}
		}()

		if err := fn(); err != nil {
			b.log.WithField("message", err).Error("background task failed")
		}
	}()
}

func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}

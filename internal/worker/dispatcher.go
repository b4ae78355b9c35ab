package worker

import (
	"context"
	"sync"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/rabbitmq/queue"
)

type immediateConsumer interface {
	Consume(ctx context.Context, out chan<- queue.ImmediateMessage, strategy retry.Strategy) error
}

type messageHandler interface {
	HandleMessage(ctx context.Context, msg queue.ImmediateMessage, strategy retry.Strategy)
}

// Dispatcher fans immediate-send messages from the queue out to a pool of
// worker goroutines.
type Dispatcher struct {
	queue   immediateConsumer
	handler messageHandler
}

func NewDispatcher(q immediateConsumer, h messageHandler) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		handler: h,
	}
}

// Run consumes until the context is cancelled, then waits for in-flight
// handlers to finish.
func (d *Dispatcher) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	var wg sync.WaitGroup
	msgChan := make(chan queue.ImmediateMessage, workerCount*10)

	go func() {
		if err := d.queue.Consume(ctx, msgChan, strategy); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to consume messages")
		}
	}()

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go func(id int) {
			defer wg.Done()

			zlog.Logger.Printf("dispatcher worker-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("dispatcher worker-%d shutting down", id)
					return
				case msg, ok := <-msgChan:
					if !ok {
						zlog.Logger.Printf("dispatcher worker-%d channel closed, shutting down", id)
						return
					}

					d.handler.HandleMessage(ctx, msg, strategy)
				}
			}
		}(i)
	}

	<-ctx.Done()
	wg.Wait()
	zlog.Logger.Print("dispatcher stopped")
}

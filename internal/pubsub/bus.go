package pubsub

import (
	"context"
	"sync"
)

// Delivery is a message received on a Bus subscription.
type Delivery struct {
	Channel string
	Message Message
}

// Bus is an in-process Publisher for single-node deployments and tests.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Delivery]string
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Delivery]string)}
}

func (b *Bus) Publish(_ context.Context, channel string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, want := range b.subscribers {
		if want != "" && want != channel {
			continue
		}
		select {
		case ch <- Delivery{Channel: channel, Message: msg}:
		default:
			// slow subscriber
		}
	}
	return nil
}

// Subscribe delivers messages on channel (all channels when empty)
// until ctx is done.
func (b *Bus) Subscribe(ctx context.Context, channel string) <-chan Delivery {
	ch := make(chan Delivery, 100)

	b.mu.Lock()
	b.subscribers[ch] = channel
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch
}

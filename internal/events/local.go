package events

import (
	"context"
	"sync"
)

// LocalBus - pub/sub внутри процесса, используется без Redis (NONCE_BACKEND=memory) и в тестах.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(Event)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string][]func(Event))}
}

func (b *LocalBus) Publish(_ context.Context, stream string, event Event) error {
	b.mu.RLock()
	handlers := append([]func(Event){}, b.handlers[stream]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

func (b *LocalBus) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	b.mu.Lock()
	b.handlers[stream] = append(b.handlers[stream], handler)
	idx := len(b.handlers[stream]) - 1
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		hs := b.handlers[stream]
		if idx < len(hs) {
			hs[idx] = func(Event) {}
		}
	}()
	return nil
}

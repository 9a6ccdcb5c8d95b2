package events

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisPubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Event, 1)
	sub := NewRedisSubscriber(client, zap.NewNop())
	require.NoError(t, sub.Subscribe(ctx, Channel, func(e Event) { received <- e }))

	pub := NewRedisPublisher(client, zap.NewNop())
	event := Event{Type: EventCredentialIssued, Address: "0xabc", Payload: map[string]any{"issuer": "did:ethr:sepolia:0x1"}}

	require.NoError(t, pub.Publish(ctx, Channel, event))

	select {
	case got := <-received:
		assert.Equal(t, event, got)
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestLocalBus(t *testing.T) {
	bus := NewLocalBus()
	ctx, cancel := context.WithCancel(context.Background())

	var got []Event
	require.NoError(t, bus.Subscribe(ctx, Channel, func(e Event) { got = append(got, e) }))

	require.NoError(t, bus.Publish(context.Background(), Channel, Event{Type: EventWalletVerified}))
	require.NoError(t, bus.Publish(context.Background(), "other", Event{Type: EventWalletVerified}))
	require.Len(t, got, 1)

	cancel()
	require.Eventually(t, func() bool {
		before := len(got)
		_ = bus.Publish(context.Background(), Channel, Event{Type: EventWalletVerified})
		return len(got) == before
	}, time.Second, 10*time.Millisecond)
}

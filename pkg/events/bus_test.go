package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("job:1")
	defer cancel()

	b.Publish("job:1", Event{Type: "job.status", Payload: map[string]any{"status": "running"}})

	select {
	case evt := <-ch:
		assert.Equal(t, "job.status", evt.Type)
		assert.Equal(t, "job:1", evt.Channel)
		assert.Equal(t, "running", evt.Payload["status"])
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestBus_PublishToChannelWithNoSubscribersIsANoop(t *testing.T) {
	b := NewBus()
	assert.NotPanics(t, func() {
		b.Publish("job:nobody-listening", Event{Type: "job.status"})
	})
}

func TestBus_CancelStopsDeliveryAndClosesChannel(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("job:1")
	cancel()

	b.Publish("job:1", Event{Type: "job.status"})

	_, open := <-ch
	assert.False(t, open, "channel should be closed after cancel")
}

func TestBus_CancelIsIdempotent(t *testing.T) {
	b := NewBus()
	_, cancel := b.Subscribe("job:1")
	assert.NotPanics(t, func() {
		cancel()
		cancel()
	})
}

func TestBus_SlowSubscriberDropsRatherThanBlocksPublisher(t *testing.T) {
	b := NewBus()
	ch, cancel := b.Subscribe("job:1")
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		b.Publish("job:1", Event{Type: "job.status"})
	}

	assert.Len(t, ch, subscriberBuffer)
}

func TestBus_SubscriberCountReflectsActiveSubscriptions(t *testing.T) {
	b := NewBus()
	require.Equal(t, 0, b.SubscriberCount("job:1"))

	_, cancel1 := b.Subscribe("job:1")
	_, cancel2 := b.Subscribe("job:1")
	assert.Equal(t, 2, b.SubscriberCount("job:1"))

	cancel1()
	assert.Equal(t, 1, b.SubscriberCount("job:1"))

	cancel2()
	assert.Equal(t, 0, b.SubscriberCount("job:1"))
}

func TestJobChannel_PrefixesJobID(t *testing.T) {
	assert.Equal(t, "job:abc-123", JobChannel("abc-123"))
}

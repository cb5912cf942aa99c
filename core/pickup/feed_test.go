package pickup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_PublishFanOut(t *testing.T) {
	feed := NewFeed()
	sub1 := feed.Subscribe()
	defer sub1.Close()
	sub2 := feed.Subscribe()
	defer sub2.Close()

	evt := Event{Kind: EventCreated, Request: Request{ID: "r1"}}
	feed.Publish(evt)

	require.Len(t, sub1.C, 1)
	require.Len(t, sub2.C, 1)
	assert.Equal(t, evt, <-sub1.C)
	assert.Equal(t, evt, <-sub2.C)
}

func TestFeed_CloseIsIdempotent(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()

	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })

	// channel is closed; receive does not block
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestFeed_NoDeliveryAfterClose(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()
	sub.Close()

	assert.NotPanics(t, func() {
		feed.Publish(Event{Kind: EventCreated, Request: Request{ID: "r1"}})
	})

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestFeed_DropsEventsForLaggingConsumer(t *testing.T) {
	feed := NewFeed()
	sub := feed.Subscribe()
	defer sub.Close()

	// publish past the buffer; the publisher must never block
	for i := 0; i < subscriptionBuffer+10; i++ {
		feed.Publish(Event{Kind: EventUpdated, Request: Request{ID: "r1"}})
	}

	assert.Len(t, sub.C, subscriptionBuffer)
}

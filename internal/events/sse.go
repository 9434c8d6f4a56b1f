package events

import "github.com/kelindar/event"

// SubscribeToChannel bridges callback subscriptions to a channel, for
// the SSE endpoint where Huma expects a channel-based select loop.
// Events are dropped when the channel is full so a slow SSE client
// never blocks the publisher.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/camforge/uvchost/internal/events"
)

func (s *Server) registerEventRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Event Stream",
		Description: "Device and stream events via Server-Sent Events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"device-attached":      events.DeviceAttachedEvent{},
		"device-detached":      events.DeviceDetachedEvent{},
		"frame-captured":       events.FrameCapturedEvent{},
		"stream-state-changed": events.StreamStateChangedEvent{},
		"stream-error":         events.StreamErrorEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 64)

		unsubs := []func(){
			events.SubscribeToChannel[events.DeviceAttachedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.DeviceDetachedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.FrameCapturedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.StreamStateChangedEvent](s.opts.Bus, eventCh),
			events.SubscribeToChannel[events.StreamErrorEvent](s.opts.Bus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

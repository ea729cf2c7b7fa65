package events

import "context"

// NoOpPublisher drops every event. Used when EVENTS_PROVIDER=none.
type NoOpPublisher struct{}

func (NoOpPublisher) Publish(context.Context, Event) error { return nil }

func (NoOpPublisher) Close() error { return nil }

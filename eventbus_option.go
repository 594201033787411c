package toolweave

import "github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"

// WithEventBus sets the event bus component.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(t *ToolWeave) {
		t.eventBus = bus
	}
}

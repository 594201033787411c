package adapters

import (
	"context"
	"log"

	toolweave "github.com/ZanzyTHEbar/toolweave-genkit"
	"github.com/ZanzyTHEbar/toolweave-genkit/internal/eventbus"
)

// LogFeedbackSink writes progress notices to the standard logger.
type LogFeedbackSink struct {
	Prefix string
}

// Notify implements toolweave.FeedbackSink.
func (s *LogFeedbackSink) Notify(ctx context.Context, text string) {
	if s.Prefix != "" {
		log.Printf("%s %s", s.Prefix, text)
		return
	}
	log.Print(text)
}

// EventBusFeedbackSink publishes progress notices as system-info events so
// any subscriber (a chat surface, a log collector) can observe them.
type EventBusFeedbackSink struct {
	Bus eventbus.EventBus
}

// Notify implements toolweave.FeedbackSink.
func (s *EventBusFeedbackSink) Notify(ctx context.Context, text string) {
	if s.Bus == nil {
		return
	}
	_ = s.Bus.Publish(ctx, eventbus.NewEvent(
		eventbus.EventSystemInfo,
		text,
		"EventBusFeedbackSink",
		nil,
	))
}

var (
	_ toolweave.FeedbackSink = (*LogFeedbackSink)(nil)
	_ toolweave.FeedbackSink = (*EventBusFeedbackSink)(nil)
)

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmunix/podknob/internal/events"
)

func TestDescribeEvent(t *testing.T) {
	registry := events.DefaultRegistry()

	raw := events.RawEvent{
		EventType: events.EventFeedRefreshed,
		EntityID:  2,
		Payload:   `{"type":"feed.refreshed","entity_type":"feed","entity_id":2,"occurred_at":"2024-01-01T12:00:00Z","feed":"Morning Show","episodes":2,"new_episodes":1}`,
	}
	assert.Equal(t, `refreshed feed "Morning Show" (slot 2): 2 episodes, 1 new`, describeEvent(registry, raw))

	raw = events.RawEvent{
		EventType: events.EventItemCompleted,
		EntityID:  4,
		Payload:   `{"type":"item.completed","entity_type":"slot","entity_id":4,"occurred_at":"2024-01-01T12:00:00Z","domain":"music","item":"03.mp3","failed":true}`,
	}
	assert.Equal(t, "skipped unplayable music item on slot 4: 03.mp3", describeEvent(registry, raw))
}

func TestDescribeEvent_UnknownTypeFallsBack(t *testing.T) {
	registry := events.DefaultRegistry()
	raw := events.RawEvent{EventType: "legacy.event", EntityID: 9, Payload: `{}`}
	assert.Equal(t, "legacy.event (slot 9)", describeEvent(registry, raw))
}

package events

// Entity types. The entity ID is the knob position for slot events and
// the feed's slot for feed events.
const (
	EntitySlot = "slot"
	EntityFeed = "feed"
)

// Event type constants
const (
	EventSessionStarted    = "session.started"
	EventSessionStopped    = "session.stopped"
	EventItemCompleted     = "item.completed"
	EventSlotCompleted     = "slot.completed"
	EventSlotReset         = "slot.reset"
	EventFeedRefreshed     = "feed.refreshed"
	EventEpisodeDownloaded = "episode.downloaded"
)

// Playback domains, carried on slot events so history can tell podcast
// slots and music slots apart.
const (
	DomainPodcast = "podcast"
	DomainMusic   = "music"
)

// SessionStarted is emitted when playback begins on a slot.
type SessionStarted struct {
	BaseEvent
	SessionID string  `json:"session_id"`
	Domain    string  `json:"domain"`
	Item      string  `json:"item"` // episode title or track filename
	File      string  `json:"file"`
	Offset    float64 `json:"offset_seconds"`
}

// SessionStopped is emitted when playback on a slot ends, whether by a
// switch change, a knob turn, or daemon shutdown.
type SessionStopped struct {
	BaseEvent
	SessionID string  `json:"session_id"`
	Domain    string  `json:"domain"`
	Position  float64 `json:"position_seconds"`
}

// ItemCompleted is emitted when an episode or track plays to the end, or
// is skipped because it could not be played.
type ItemCompleted struct {
	BaseEvent
	Domain string `json:"domain"`
	Item   string `json:"item"`
	Failed bool   `json:"failed,omitempty"` // skipped rather than finished
}

// SlotCompleted is emitted when every item in a slot has been played.
type SlotCompleted struct {
	BaseEvent
	Domain string `json:"domain"`
}

// SlotReset is emitted when a completed slot is selected again and its
// progress is cleared for another pass.
type SlotReset struct {
	BaseEvent
	Domain string `json:"domain"`
}

// FeedRefreshed is emitted after a feed's episode list is rebuilt.
type FeedRefreshed struct {
	BaseEvent
	Feed        string `json:"feed"`
	Episodes    int    `json:"episodes"`
	NewEpisodes int    `json:"new_episodes"`
}

// EpisodeDownloaded is emitted for each newly fetched episode file.
type EpisodeDownloaded struct {
	BaseEvent
	Feed  string `json:"feed"`
	Title string `json:"title"`
	File  string `json:"file"`
}

// Package domain defines events for the event-driven architecture.
// Events are the only integration point between the orchestrator and its observers.
package domain

import (
	"time"
)

// Event is the base interface for all events in the system.
// All events must implement this interface to be published via the event bus.
type Event interface {
	// Type returns the event type identifier
	Type() EventType

	// Timestamp returns when the event occurred
	Timestamp() time.Time
}

// EventType is a string identifier for different event types.
type EventType string

// Event type constants define all possible events in the system.
const (
	// Playback events
	EventStateChanged   EventType = "playback.state"
	EventTrackResolved  EventType = "track.resolved"
	EventTrackCompleted EventType = "track.completed"
	EventTrackProgress  EventType = "track.progress"
	EventTrackError     EventType = "track.error"

	// Queue events
	EventQueueChanged EventType = "queue.changed"
)

// EventHandler is a function that handles events.
type EventHandler func(event Event)

// SubscriptionID uniquely identifies an event subscription.
type SubscriptionID string

// baseEvent provides common event functionality.
// All concrete events should embed this struct.
type baseEvent struct {
	timestamp time.Time
}

// Timestamp returns when the event occurred.
func (e baseEvent) Timestamp() time.Time {
	return e.timestamp
}

// newBaseEvent creates a new base event with the current timestamp.
func newBaseEvent() baseEvent {
	return baseEvent{timestamp: time.Now()}
}

// StateChangedEvent is the broadcast state notification.
// File carries the remote URI of the track concerned, when there is one.
type StateChangedEvent struct {
	baseEvent
	State PlaybackState
	File  string
	Track *Track
}

// Type returns the event type.
func (e StateChangedEvent) Type() EventType {
	return EventStateChanged
}

// NewStateChangedEvent creates a new StateChangedEvent.
func NewStateChangedEvent(state PlaybackState, track *Track) StateChangedEvent {
	ev := StateChangedEvent{
		baseEvent: newBaseEvent(),
		State:     state,
		Track:     track,
	}
	if track != nil {
		ev.File = track.URI
	}
	return ev
}

// StateNotification is the wire form of a StateChangedEvent.
type StateNotification struct {
	State string `json:"state"`
	File  string `json:"file,omitempty"`
}

// Notification converts the event to its wire form.
func (e StateChangedEvent) Notification() StateNotification {
	return StateNotification{State: e.State.String(), File: e.File}
}

// TrackResolvedEvent is published once a track has a playable location.
type TrackResolvedEvent struct {
	baseEvent
	Track      Track
	Resolution Resolution
}

// Type returns the event type.
func (e TrackResolvedEvent) Type() EventType {
	return EventTrackResolved
}

// NewTrackResolvedEvent creates a new TrackResolvedEvent.
func NewTrackResolvedEvent(track Track, res Resolution) TrackResolvedEvent {
	return TrackResolvedEvent{
		baseEvent:  newBaseEvent(),
		Track:      track,
		Resolution: res,
	}
}

// TrackCompletedEvent is published when a track finishes playing naturally.
type TrackCompletedEvent struct {
	baseEvent
	Track Track
}

// Type returns the event type.
func (e TrackCompletedEvent) Type() EventType {
	return EventTrackCompleted
}

// NewTrackCompletedEvent creates a new TrackCompletedEvent.
func NewTrackCompletedEvent(track Track) TrackCompletedEvent {
	return TrackCompletedEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
	}
}

// TrackProgressEvent is published periodically during playback.
type TrackProgressEvent struct {
	baseEvent
	Position time.Duration
	Duration time.Duration
}

// Type returns the event type.
func (e TrackProgressEvent) Type() EventType {
	return EventTrackProgress
}

// NewTrackProgressEvent creates a new TrackProgressEvent.
func NewTrackProgressEvent(position, duration time.Duration) TrackProgressEvent {
	return TrackProgressEvent{
		baseEvent: newBaseEvent(),
		Position:  position,
		Duration:  duration,
	}
}

// TrackErrorEvent is published when a track cannot be played.
type TrackErrorEvent struct {
	baseEvent
	Track Track
	Error error
}

// Type returns the event type.
func (e TrackErrorEvent) Type() EventType {
	return EventTrackError
}

// NewTrackErrorEvent creates a new TrackErrorEvent.
func NewTrackErrorEvent(track Track, err error) TrackErrorEvent {
	return TrackErrorEvent{
		baseEvent: newBaseEvent(),
		Track:     track,
		Error:     err,
	}
}

// QueueChangedEvent is published after every queue mutation.
// Refresh is true for structural changes and false for now-playing updates.
type QueueChangedEvent struct {
	baseEvent
	Queue   []Track
	Refresh bool
}

// Type returns the event type.
func (e QueueChangedEvent) Type() EventType {
	return EventQueueChanged
}

// NewQueueChangedEvent creates a new QueueChangedEvent.
func NewQueueChangedEvent(queue []Track, refresh bool) QueueChangedEvent {
	return QueueChangedEvent{
		baseEvent: newBaseEvent(),
		Queue:     queue,
		Refresh:   refresh,
	}
}

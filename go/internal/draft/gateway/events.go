package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/draftroom/go/internal/draft/events"
)

// LeagueEvent is the message written to WebSocket clients
type LeagueEvent struct {
	ID        string          `json:"id"`
	LeagueID  string          `json:"league_id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// EventType represents the type of league event
type EventType string

const (
	EventTypePickStarted    EventType = events.TypePickStarted
	EventTypePickMade       EventType = events.TypePickMade
	EventTypePickSkipped    EventType = events.TypePickSkipped
	EventTypePickUndone     EventType = events.TypePickUndone
	EventTypeDraftStarted   EventType = events.TypeDraftStarted
	EventTypeDraftPaused    EventType = events.TypeDraftPaused
	EventTypeDraftResumed   EventType = events.TypeDraftResumed
	EventTypeDraftCompleted EventType = events.TypeDraftCompleted

	// EventTypeTurnSnapshot is sent once to a client when it connects.
	EventTypeTurnSnapshot EventType = "TurnSnapshot"
	// EventTypePong answers a client ping.
	EventTypePong EventType = "Pong"
)

var knownEventTypes = map[string]EventType{
	events.TypePickStarted:    EventTypePickStarted,
	events.TypePickMade:       EventTypePickMade,
	events.TypePickSkipped:    EventTypePickSkipped,
	events.TypePickUndone:     EventTypePickUndone,
	events.TypeDraftStarted:   EventTypeDraftStarted,
	events.TypeDraftPaused:    EventTypeDraftPaused,
	events.TypeDraftResumed:   EventTypeDraftResumed,
	events.TypeDraftCompleted: EventTypeDraftCompleted,
}

// toLeagueEvent maps a bus event onto the client format. Unknown types are rejected.
func toLeagueEvent(eventID, eventType, leagueID string, payload json.RawMessage, now time.Time) (*LeagueEvent, error) {
	t, ok := knownEventTypes[eventType]
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
	return &LeagueEvent{
		ID:        eventID,
		LeagueID:  leagueID,
		Type:      t,
		Timestamp: now,
		Data:      payload,
	}, nil
}

// ParseEventPayload parses event data into the matching payload struct
func ParseEventPayload(event *LeagueEvent) (any, error) {
	var payload any
	switch event.Type {
	case EventTypePickStarted:
		payload = &events.PickStartedPayload{}
	case EventTypePickMade:
		payload = &events.PickMadePayload{}
	case EventTypePickSkipped:
		payload = &events.PickSkippedPayload{}
	case EventTypePickUndone:
		payload = &events.PickUndonePayload{}
	case EventTypeDraftStarted:
		payload = &events.DraftStartedPayload{}
	case EventTypeDraftPaused:
		payload = &events.DraftPausedPayload{}
	case EventTypeDraftResumed:
		payload = &events.DraftResumedPayload{}
	case EventTypeDraftCompleted:
		payload = &events.DraftCompletedPayload{}
	default:
		return nil, nil
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

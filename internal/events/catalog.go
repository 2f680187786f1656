package events

import "fmt"

// Event type identifiers carried in the outbox and in the event_type Kafka header.
const (
	TypeActivityLogged      = "activity.logged"
	TypeActivityRemoved     = "activity.removed"
	TypeActivitySyncChanged = "activity.sync_changed"
)

// Kafka header keys set on every delivered record.
const (
	HeaderEventType     = "event_type"
	HeaderTenantID      = "tenant_id"
	HeaderSchemaSubject = "schema_subject"
	// HeaderEventKey is stable across DLQ requeues, unlike the outbox row id.
	HeaderEventKey = "event_key"
)

// Topics written by the outbox dispatcher.
const (
	TopicActivityEvents = "activity_events"
	TopicActivitySync   = "activity_sync_state"
)

// Route describes where an event type is published and which registry subject
// describes its payload.
type Route struct {
	EventType     string
	Topic         string
	SchemaSubject string
}

var routes = map[string]Route{
	TypeActivityLogged: {
		EventType:     TypeActivityLogged,
		Topic:         TopicActivityEvents,
		SchemaSubject: TopicActivityEvents + "-ActivityLogged",
	},
	TypeActivityRemoved: {
		EventType:     TypeActivityRemoved,
		Topic:         TopicActivityEvents,
		SchemaSubject: TopicActivityEvents + "-ActivityRemoved",
	},
	TypeActivitySyncChanged: {
		EventType:     TypeActivitySyncChanged,
		Topic:         TopicActivitySync,
		SchemaSubject: TopicActivitySync + "-value",
	},
}

// RouteFor returns the route of a known event type.
func RouteFor(eventType string) (Route, error) {
	route, ok := routes[eventType]
	if !ok {
		return Route{}, fmt.Errorf("unknown event type: %s", eventType)
	}
	return route, nil
}

// UserPartitionKey keeps every event of one user's log on the same partition.
func UserPartitionKey(tenantID, userID string) string {
	return tenantID + ":" + userID
}

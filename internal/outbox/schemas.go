package outbox

import "example.com/fitpulse/internal/events"

const activityLoggedSchema = `{
  "type": "object",
  "title": "ActivityLogged",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["walking", "running", "cycling", "swimming", "yoga", "weightlifting"]},
    "intensity": {"type": "string", "enum": ["light", "moderate", "vigorous"]},
    "duration_min": {"type": "number", "exclusiveMinimum": 0},
    "calories": {"type": "integer", "minimum": 0},
    "source": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "logged_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "kind", "intensity", "duration_min", "calories", "source", "started_at", "logged_at"],
  "additionalProperties": false
}`

const activityRemovedSchema = `{
  "type": "object",
  "title": "ActivityRemoved",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "duration_min": {"type": "number"},
    "calories": {"type": "integer", "minimum": 0},
    "source": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"},
    "removed_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "duration_min", "calories", "source", "started_at", "removed_at"],
  "additionalProperties": false
}`

const activitySyncChangedSchema = `{
  "type": "object",
  "title": "ActivitySyncChanged",
  "properties": {
    "activity_id": {"type": "string"},
    "tenant_id": {"type": "string"},
    "user_id": {"type": "string"},
    "state": {"type": "string", "enum": ["local", "synced", "sync_failed", "imported"]},
    "occurred_at": {"type": "string", "format": "date-time"},
    "reason": {"type": "string"}
  },
  "required": ["activity_id", "tenant_id", "user_id", "state", "occurred_at"],
  "additionalProperties": false
}`

// schemaCatalog maps event type to the JSON schema registered for its subject.
var schemaCatalog = map[string]string{
	events.TypeActivityLogged:      activityLoggedSchema,
	events.TypeActivityRemoved:     activityRemovedSchema,
	events.TypeActivitySyncChanged: activitySyncChangedSchema,
}

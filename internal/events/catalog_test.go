package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouteFor(t *testing.T) {
	logged, err := RouteFor(TypeActivityLogged)
	require.NoError(t, err)
	require.Equal(t, TopicActivityEvents, logged.Topic)

	removed, err := RouteFor(TypeActivityRemoved)
	require.NoError(t, err)
	require.Equal(t, logged.Topic, removed.Topic)
	require.NotEqual(t, logged.SchemaSubject, removed.SchemaSubject)

	sync, err := RouteFor(TypeActivitySyncChanged)
	require.NoError(t, err)
	require.Equal(t, TopicActivitySync, sync.Topic)

	_, err = RouteFor("activity.exploded")
	require.Error(t, err)
}

func TestUserPartitionKey(t *testing.T) {
	require.Equal(t, "tenant-a:user-b", UserPartitionKey("tenant-a", "user-b"))
}

package googlefit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	fitness "google.golang.org/api/fitness/v1"

	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/energy"
)

type fakeFit struct {
	mu        sync.Mutex
	pages     map[string]*fitness.ListSessionsResponse
	aggregate *fitness.AggregateResponse
	listErr   bool
	updated   []*fitness.Session
	auth      []string
	windows   []string
}

func (f *fakeFit) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))

	path := strings.TrimPrefix(r.URL.Path, "/fitness/v1/users/")
	switch {
	case r.Method == http.MethodGet && path == "me/sessions":
		if f.listErr {
			http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
			return
		}
		f.windows = append(f.windows, r.URL.Query().Get("startTime")+"/"+r.URL.Query().Get("endTime"))
		page, ok := f.pages[r.URL.Query().Get("pageToken")]
		if !ok {
			page = &fitness.ListSessionsResponse{}
		}
		writeBody(w, page)
	case r.Method == http.MethodPost && path == "me/dataset:aggregate":
		var req fitness.AggregateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.AggregateBy) == 0 || req.AggregateBy[0].DataTypeName != caloriesDataType {
			http.Error(w, "bad aggregate", http.StatusBadRequest)
			return
		}
		writeBody(w, f.aggregate)
	case r.Method == http.MethodPut && strings.HasPrefix(path, "me/sessions/"):
		var session fitness.Session
		if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
			http.Error(w, "bad session", http.StatusBadRequest)
			return
		}
		f.updated = append(f.updated, &session)
		writeBody(w, &session)
	default:
		http.NotFound(w, r)
	}
}

func writeBody(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(t *testing.T, fake *fakeFit) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, nil)
}

func calorieBucket(sessionID string, values ...float64) *fitness.AggregateBucket {
	points := make([]*fitness.DataPoint, 0, len(values))
	for _, v := range values {
		points = append(points, &fitness.DataPoint{Value: []*fitness.Value{{FpVal: v}}})
	}
	return &fitness.AggregateBucket{
		Session: &fitness.Session{Id: sessionID},
		Dataset: []*fitness.Dataset{{Point: points}},
	}
}

func TestFetchSessionsJoinsCaloriesAcrossPages(t *testing.T) {
	start := time.Date(2025, time.May, 2, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)
	runStart := start.Add(7 * time.Hour)

	fake := &fakeFit{
		pages: map[string]*fitness.ListSessionsResponse{
			"": {
				Session: []*fitness.Session{{
					Id:              "run-1",
					Name:            "Morning run",
					ActivityType:    TypeRunning,
					StartTimeMillis: runStart.UnixMilli(),
					EndTimeMillis:   runStart.Add(30 * time.Minute).UnixMilli(),
				}},
				NextPageToken: "p2",
			},
			"p2": {
				Session: []*fitness.Session{{
					Id:              "odd-1",
					ActivityType:    9999,
					StartTimeMillis: runStart.Add(2 * time.Hour).UnixMilli(),
					EndTimeMillis:   runStart.Add(3 * time.Hour).UnixMilli(),
				}},
			},
		},
		aggregate: &fitness.AggregateResponse{Bucket: []*fitness.AggregateBucket{
			calorieBucket("run-1", 200.5, 150),
		}},
	}
	client := newTestClient(t, fake)

	before := testutil.ToFloat64(unmappedTypes.WithLabelValues("com.google.activity.9999"))
	sessions, err := client.FetchSessions(context.Background(), "token-abc", start, end)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	require.Equal(t, domain.ExternalSession{
		ID:             "run-1",
		TypeIdentifier: "com.google.running",
		Name:           "Morning run",
		StartTime:      runStart,
		EndTime:        runStart.Add(30 * time.Minute),
		Calories:       350.5,
	}, sessions[0])

	require.Equal(t, "com.google.activity.9999", sessions[1].TypeIdentifier)
	require.Zero(t, sessions[1].Calories)
	require.InDelta(t, before+1, testutil.ToFloat64(unmappedTypes.WithLabelValues("com.google.activity.9999")), 0.0001)

	require.Equal(t, "2025-05-02T00:00:00Z/2025-05-03T00:00:00Z", fake.windows[0])
	for _, header := range fake.auth {
		require.Equal(t, "Bearer token-abc", header)
	}
}

func TestFetchSessionsEmptySkipsAggregate(t *testing.T) {
	fake := &fakeFit{}
	client := newTestClient(t, fake)

	sessions, err := client.FetchSessions(context.Background(), "tok", time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	require.Empty(t, sessions)
	require.Len(t, fake.auth, 1)
}

func TestFetchSessionsProviderError(t *testing.T) {
	client := newTestClient(t, &fakeFit{listErr: true})

	_, err := client.FetchSessions(context.Background(), "tok", time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "list sessions")
}

func TestPushActivityWritesSession(t *testing.T) {
	fake := &fakeFit{}
	client := newTestClient(t, fake)
	startedAt := time.Date(2025, time.May, 2, 18, 0, 0, 0, time.UTC)

	err := client.PushActivity(context.Background(), "tok", domain.Activity{
		ID:          "act-1",
		Kind:        energy.KindCycling,
		Intensity:   energy.IntensityVigorous,
		DurationMin: 45,
		Calories:    567,
		StartedAt:   startedAt,
	})
	require.NoError(t, err)
	require.Len(t, fake.updated, 1)

	session := fake.updated[0]
	require.Equal(t, "act-1", session.Id)
	require.Equal(t, "cycling workout", session.Name)
	require.Equal(t, TypeBiking, session.ActivityType)
	require.Equal(t, startedAt.UnixMilli(), session.StartTimeMillis)
	require.Equal(t, startedAt.Add(45*time.Minute).UnixMilli(), session.EndTimeMillis)
	require.Equal(t, applicationName, session.Application.Name)
}

func TestPushActivityRejectsUnknownKind(t *testing.T) {
	client := newTestClient(t, &fakeFit{})
	err := client.PushActivity(context.Background(), "tok", domain.Activity{ID: "x", Kind: "pilates", DurationMin: 10})
	require.Error(t, err)
}

func TestPushActivityRejectsOutOfRangeDuration(t *testing.T) {
	fake := &fakeFit{}
	client := newTestClient(t, fake)
	for _, minutes := range []float64{0, -5, domain.MaxDurationMin + 1, 1e18} {
		err := client.PushActivity(context.Background(), "tok", domain.Activity{ID: "x", Kind: energy.KindRunning, DurationMin: minutes})
		require.Error(t, err, minutes)
	}
	require.Empty(t, fake.updated)
}

func TestIdentifierRoundTrip(t *testing.T) {
	for _, kind := range energy.Kinds() {
		n, ok := ActivityTypeFor(kind)
		require.True(t, ok, kind)
		require.Equal(t, kind, energy.MapExternalActivityType(Identifier(n)))
	}
	require.Equal(t, "com.google.activity.42", Identifier(42))
	require.Equal(t, energy.KindWalking, energy.MapExternalActivityType(Identifier(42)))
}

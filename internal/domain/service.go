// Package domain defines the business logic for the activity log.
package domain

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"example.com/fitpulse/internal/energy"
	"example.com/fitpulse/internal/observability"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrInvalidActivity wraps validation failures for new activities.
	ErrInvalidActivity = errors.New("invalid activity")
	// ErrFitnessNotConnected is returned when an import is requested without provider credentials.
	ErrFitnessNotConnected = errors.New("fitness provider not connected")
	// ErrFetchSessions wraps provider failures while reading sessions.
	ErrFetchSessions = errors.New("fetch sessions")
)

// DefaultImportWindow is how far back session imports look when no window is given.
const DefaultImportWindow = 24 * time.Hour

// MaxDurationMin bounds a single activity to one day.
const MaxDurationMin = 24 * 60

const minImportedDurationMin = 0.01

// ActivityRepository captures persistence operations.
type ActivityRepository interface {
	FindByExternalID(ctx context.Context, tenantID, userID string, source Source, externalID string) (*Activity, error)
	Create(ctx context.Context, activity Activity) error
	Get(ctx context.Context, tenantID, activityID string) (*Activity, error)
	Delete(ctx context.Context, tenantID, activityID string) (*Activity, error)
	ListByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error)
	UpdateSyncState(ctx context.Context, tenantID, activityID string, state SyncState, reason string) error
	SummaryByUser(ctx context.Context, tenantID, userID string, since time.Time) (ActivitySummary, error)
}

// SessionSource reads and writes workout sessions at the fitness provider.
type SessionSource interface {
	FetchSessions(ctx context.Context, accessToken string, start, end time.Time) ([]ExternalSession, error)
	PushActivity(ctx context.Context, accessToken string, activity Activity) error
}

// Cursor models the pagination token.
type Cursor struct {
	StartedAt time.Time
	ID        string
}

// Option configures optional Service behaviour.
type Option func(*Service)

// WithSessionSource enables provider imports and pushes.
func WithSessionSource(source SessionSource) Option {
	return func(s *Service) { s.sessions = source }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithDefaultBodyWeight sets the weight used when a request does not carry one.
func WithDefaultBodyWeight(kg float64) Option {
	return func(s *Service) {
		if kg > 0 {
			s.defaultWeightKg = kg
		}
	}
}

// WithImportWindow sets the default lookback for provider imports.
func WithImportWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.importWindow = window
		}
	}
}

// Service orchestrates activity workflows.
type Service struct {
	repo            ActivityRepository
	sessions        SessionSource
	now             func() time.Time
	logger          *logrus.Entry
	defaultWeightKg float64
	importWindow    time.Duration
}

// NewService constructs a Service.
func NewService(repo ActivityRepository, opts ...Option) *Service {
	s := &Service{
		repo:            repo,
		now:             time.Now,
		logger:          logrus.WithField("component", "activity-service"),
		defaultWeightKg: energy.DefaultBodyWeightKg,
		importWindow:    DefaultImportWindow,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogActivityInput captures a manually entered activity.
type LogActivityInput struct {
	TenantID     string
	UserID       string
	Kind         string
	Intensity    string
	DurationMin  float64
	BodyWeightKg float64
	StartedAt    time.Time
	AccessToken  string
}

func (in LogActivityInput) validate() (energy.Kind, energy.Intensity, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return "", "", fmt.Errorf("%w: user_id is required", ErrInvalidActivity)
	}
	kind, err := energy.ParseKind(in.Kind)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	intensity := energy.DefaultIntensity
	if strings.TrimSpace(in.Intensity) != "" {
		if intensity, err = energy.ParseIntensity(in.Intensity); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidActivity, err)
		}
	}
	if math.IsNaN(in.DurationMin) || math.IsInf(in.DurationMin, 0) || in.DurationMin <= 0 {
		return "", "", fmt.Errorf("%w: duration_min must be > 0", ErrInvalidActivity)
	}
	if in.DurationMin > MaxDurationMin {
		return "", "", fmt.Errorf("%w: duration_min must not exceed %d", ErrInvalidActivity, MaxDurationMin)
	}
	if in.BodyWeightKg < 0 {
		return "", "", fmt.Errorf("%w: body_weight_kg must not be negative", ErrInvalidActivity)
	}
	return kind, intensity, nil
}

// LogActivity records a manual activity, estimating its calories. When an access token is
// supplied the activity is also pushed to the fitness provider; push failures are recorded
// on the activity but do not fail the call.
func (s *Service) LogActivity(ctx context.Context, input LogActivityInput) (*Activity, error) {
	kind, intensity, err := input.validate()
	if err != nil {
		return nil, err
	}

	weight := input.BodyWeightKg
	if weight == 0 {
		weight = s.defaultWeightKg
	}

	now := s.now().UTC()
	startedAt := input.StartedAt.UTC()
	if input.StartedAt.IsZero() {
		startedAt = now.Add(-time.Duration(input.DurationMin * float64(time.Minute)))
	}

	activity := Activity{
		ID:          uuid.NewString(),
		TenantID:    input.TenantID,
		UserID:      input.UserID,
		Kind:        kind,
		Intensity:   intensity,
		DurationMin: input.DurationMin,
		Calories:    energy.EstimateCaloriesForWeight(kind, intensity, input.DurationMin, weight),
		Source:      SourceManual,
		StartedAt:   startedAt,
		SyncState:   SyncStateLocal,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	observability.RecordActivityLogged(string(activity.Source), string(activity.Kind), activity.Calories)

	if input.AccessToken != "" && s.sessions != nil {
		s.push(ctx, input.AccessToken, &activity)
	}
	return &activity, nil
}

func (s *Service) push(ctx context.Context, accessToken string, activity *Activity) {
	state, reason := SyncStateSynced, ""
	if err := s.sessions.PushActivity(ctx, accessToken, *activity); err != nil {
		state, reason = SyncStateFailed, err.Error()
		s.logger.WithFields(logrus.Fields{
			"activity_id": activity.ID,
			"tenant_id":   activity.TenantID,
		}).WithError(err).Warn("push to fitness provider failed")
	}
	observability.RecordSyncResult(string(state))

	if err := s.repo.UpdateSyncState(ctx, activity.TenantID, activity.ID, state, reason); err != nil {
		s.logger.WithField("activity_id", activity.ID).WithError(err).Error("record sync state")
		return
	}
	activity.SyncState = state
	activity.UpdatedAt = s.now().UTC()
}

// ImportInput describes a provider import request.
type ImportInput struct {
	TenantID    string
	UserID      string
	AccessToken string
	Window      time.Duration
}

// ImportResult reports the outcome of an import.
type ImportResult struct {
	Imported   int
	Replayed   int
	Skipped    int
	Activities []Activity
}

// ImportSessions pulls recent provider sessions into the log. Sessions already imported
// are returned as replays rather than duplicated. Sessions without a usable span are skipped.
func (s *Service) ImportSessions(ctx context.Context, input ImportInput) (*ImportResult, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidActivity)
	}
	if input.AccessToken == "" || s.sessions == nil {
		return nil, ErrFitnessNotConnected
	}

	window := input.Window
	if window <= 0 {
		window = s.importWindow
	}
	end := s.now().UTC()
	start := end.Add(-window)

	sessions, err := s.sessions.FetchSessions(ctx, input.AccessToken, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchSessions, err)
	}

	result := &ImportResult{Activities: make([]Activity, 0, len(sessions))}
	for _, session := range sessions {
		minutes := energy.SpanMinutes(session.StartTime, session.EndTime)
		if !(minutes > 0 && minutes <= MaxDurationMin) {
			s.logger.WithFields(logrus.Fields{
				"session_id":   session.ID,
				"duration_min": minutes,
			}).Warn("skipping session with unusable span")
			result.Skipped++
			continue
		}

		existing, err := s.repo.FindByExternalID(ctx, input.TenantID, input.UserID, SourceGoogleFit, session.ID)
		if err != nil {
			return nil, fmt.Errorf("lookup session %s: %w", session.ID, err)
		}
		if existing != nil {
			result.Replayed++
			result.Activities = append(result.Activities, *existing)
			continue
		}

		activity := s.fromSession(input, session, minutes)
		if err := s.repo.Create(ctx, activity); err != nil {
			return nil, fmt.Errorf("store session %s: %w", session.ID, err)
		}
		observability.RecordActivityLogged(string(activity.Source), string(activity.Kind), activity.Calories)
		result.Imported++
		result.Activities = append(result.Activities, activity)
	}

	s.logger.WithFields(logrus.Fields{
		"tenant_id": input.TenantID,
		"user_id":   input.UserID,
		"imported":  result.Imported,
		"replayed":  result.Replayed,
		"skipped":   result.Skipped,
	}).Info("fitness sessions imported")
	return result, nil
}

// fromSession expects minutes in (0, MaxDurationMin]. Durations keep two decimals so
// sub-minute sessions stay positive.
func (s *Service) fromSession(input ImportInput, session ExternalSession, minutes float64) Activity {
	now := s.now().UTC()
	calories := session.Calories
	if math.IsNaN(calories) || calories < 0 {
		calories = 0
	}
	return Activity{
		ID:          uuid.NewString(),
		TenantID:    input.TenantID,
		UserID:      input.UserID,
		Kind:        energy.MapExternalActivityType(session.TypeIdentifier),
		Intensity:   energy.ClassifyIntensity(calories, minutes),
		DurationMin: max(math.Round(minutes*100)/100, minImportedDurationMin),
		Calories:    int(math.Round(calories)),
		Source:      SourceGoogleFit,
		ExternalID:  session.ID,
		StartedAt:   session.StartTime.UTC(),
		SyncState:   SyncStateImported,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// DeleteActivity removes an activity from the log.
func (s *Service) DeleteActivity(ctx context.Context, tenantID, activityID string) (*Activity, error) {
	removed, err := s.repo.Delete(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if removed == nil {
		return nil, ErrActivityNotFound
	}
	observability.RecordActivityRemoved(string(removed.Source))
	return removed, nil
}

// GetActivity fetches by ID.
func (s *Service) GetActivity(ctx context.Context, tenantID, activityID string) (*Activity, error) {
	activity, err := s.repo.Get(ctx, tenantID, activityID)
	if err != nil {
		return nil, err
	}
	if activity == nil {
		return nil, ErrActivityNotFound
	}
	return activity, nil
}

// ListActivities fetches activities newest first with cursor pagination.
func (s *Service) ListActivities(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]Activity, *Cursor, error) {
	return s.repo.ListByUser(ctx, tenantID, userID, cursor, limit)
}

// Summary totals a user's activities over the trailing window. A zero window covers
// the whole log.
func (s *Service) Summary(ctx context.Context, tenantID, userID string, window time.Duration) (ActivitySummary, error) {
	var since time.Time
	if window > 0 {
		since = s.now().UTC().Add(-window)
	}
	return s.repo.SummaryByUser(ctx, tenantID, userID, since)
}

// Package googlefit adapts the Google Fitness REST API to the activity service.
package googlefit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	fitness "google.golang.org/api/fitness/v1"
	"google.golang.org/api/option"

	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/energy"
)

const (
	userMe              = "me"
	caloriesDataType    = "com.google.calories.expended"
	applicationName     = "fitpulse"
	defaultFetchTimeout = 15 * time.Second
)

var unmappedTypes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitpulse",
	Subsystem: "googlefit",
	Name:      "unmapped_activity_types_total",
	Help:      "Imported sessions whose activity type fell back to the default kind.",
}, []string{"identifier"})

var requestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "fitpulse",
	Subsystem: "googlefit",
	Name:      "request_errors_total",
	Help:      "Failed calls to the fitness API, by operation.",
}, []string{"operation"})

func init() {
	prometheus.MustRegister(unmappedTypes, requestErrors)
}

// Config controls how the client reaches the fitness API.
type Config struct {
	// BaseURL overrides the API endpoint; empty uses the library default.
	BaseURL string
	Timeout time.Duration
}

// Client implements domain.SessionSource against the fitness API using the caller's
// OAuth access token.
type Client struct {
	cfg    Config
	logger *logrus.Entry
}

// NewClient constructs a Client.
func NewClient(cfg Config, logger *logrus.Entry) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultFetchTimeout
	}
	if logger == nil {
		logger = logrus.WithField("component", "googlefit")
	}
	return &Client{cfg: cfg, logger: logger}
}

func (c *Client) service(ctx context.Context, accessToken string) (*fitness.Service, error) {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
	httpClient.Timeout = c.cfg.Timeout

	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(c.cfg.BaseURL, "/")+"/fitness/v1/users/"))
	}
	svc, err := fitness.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init fitness service: %w", err)
	}
	return svc, nil
}

// FetchSessions lists sessions in [start, end] and attaches the calories the provider
// aggregated for each one. Sessions without calorie data report zero.
func (c *Client) FetchSessions(ctx context.Context, accessToken string, start, end time.Time) ([]domain.ExternalSession, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	raw := make([]*fitness.Session, 0)
	pageToken := ""
	for {
		call := svc.Users.Sessions.List(userMe).
			StartTime(start.UTC().Format(time.RFC3339)).
			EndTime(end.UTC().Format(time.RFC3339)).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			requestErrors.WithLabelValues("sessions.list").Inc()
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		raw = append(raw, resp.Session...)
		if resp.NextPageToken == "" || resp.NextPageToken == pageToken {
			break
		}
		pageToken = resp.NextPageToken
	}
	if len(raw) == 0 {
		return nil, nil
	}

	calories, err := c.sessionCalories(ctx, svc, start, end)
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.ExternalSession, 0, len(raw))
	for _, s := range raw {
		if s == nil || s.Id == "" {
			continue
		}
		identifier := Identifier(s.ActivityType)
		if _, known := energy.LookupExternalActivityType(identifier); !known {
			unmappedTypes.WithLabelValues(identifier).Inc()
			c.logger.WithFields(logrus.Fields{
				"session_id": s.Id,
				"identifier": identifier,
			}).Debug("unmapped activity type, importing as default kind")
		}
		sessions = append(sessions, domain.ExternalSession{
			ID:             s.Id,
			TypeIdentifier: identifier,
			Name:           s.Name,
			StartTime:      time.UnixMilli(s.StartTimeMillis).UTC(),
			EndTime:        time.UnixMilli(s.EndTimeMillis).UTC(),
			Calories:       calories[s.Id],
		})
	}
	return sessions, nil
}

func (c *Client) sessionCalories(ctx context.Context, svc *fitness.Service, start, end time.Time) (map[string]float64, error) {
	req := &fitness.AggregateRequest{
		AggregateBy:     []*fitness.AggregateBy{{DataTypeName: caloriesDataType}},
		BucketBySession: &fitness.BucketBySession{},
		StartTimeMillis: start.UnixMilli(),
		EndTimeMillis:   end.UnixMilli(),
	}
	resp, err := svc.Users.Dataset.Aggregate(userMe, req).Context(ctx).Do()
	if err != nil {
		requestErrors.WithLabelValues("dataset.aggregate").Inc()
		return nil, fmt.Errorf("aggregate calories: %w", err)
	}

	out := make(map[string]float64, len(resp.Bucket))
	for _, bucket := range resp.Bucket {
		if bucket == nil || bucket.Session == nil {
			continue
		}
		var total float64
		for _, ds := range bucket.Dataset {
			if ds == nil {
				continue
			}
			for _, point := range ds.Point {
				if point == nil {
					continue
				}
				for _, v := range point.Value {
					if v != nil {
						total += v.FpVal
					}
				}
			}
		}
		out[bucket.Session.Id] += total
	}
	return out, nil
}

// PushActivity writes a manually logged activity as a provider session keyed by the
// activity id, so repeated pushes overwrite rather than duplicate.
func (c *Client) PushActivity(ctx context.Context, accessToken string, activity domain.Activity) error {
	activityType, ok := ActivityTypeFor(activity.Kind)
	if !ok {
		return fmt.Errorf("no provider activity type for kind %q", activity.Kind)
	}
	if !(activity.DurationMin > 0 && activity.DurationMin <= domain.MaxDurationMin) {
		return fmt.Errorf("duration %.2f min outside (0, %d]", activity.DurationMin, domain.MaxDurationMin)
	}
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return err
	}

	duration := time.Duration(activity.DurationMin * float64(time.Minute))
	startedAt := activity.StartedAt.UTC()
	session := &fitness.Session{
		Id:                 activity.ID,
		Name:               fmt.Sprintf("%s workout", activity.Kind),
		Description:        fmt.Sprintf("%s intensity, %d kcal", activity.Intensity, activity.Calories),
		ActivityType:       activityType,
		StartTimeMillis:    startedAt.UnixMilli(),
		EndTimeMillis:      startedAt.Add(duration).UnixMilli(),
		ActiveTimeMillis:   duration.Milliseconds(),
		ModifiedTimeMillis: time.Now().UnixMilli(),
		Application:        &fitness.Application{Name: applicationName},
	}
	if _, err := svc.Users.Sessions.Update(userMe, activity.ID, session).Context(ctx).Do(); err != nil {
		requestErrors.WithLabelValues("sessions.update").Inc()
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

var _ domain.SessionSource = (*Client)(nil)


// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"example.com/fitpulse/internal/auth"
	"example.com/fitpulse/internal/domain"
	"example.com/fitpulse/internal/persistence"
)

// FitnessTokenHeader carries the caller's fitness provider access token.
const FitnessTokenHeader = "X-Fitness-Access-Token"

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodyBytes     = 1 << 20
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	ledger  LedgerReader
	logger  *logrus.Entry
	now     func() time.Time
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *logrus.Entry) *Handler {
	if logger == nil {
		logger = logrus.WithField("component", "api")
	}
	return &Handler{service: service, logger: logger, now: time.Now}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/activities/summary", h.summary)
	mux.HandleFunc("/v1/activities/import", h.importSessions)
	mux.HandleFunc("/v1/energy/estimate", h.estimate)
	mux.HandleFunc("/v1/energy/classify", h.classify)
	mux.HandleFunc("/v1/energy/external-types/", h.externalType)
	if h.ledger != nil {
		mux.HandleFunc("/v1/ledger/daily", h.dailyLedger)
	}
	mux.HandleFunc("/healthz", healthz)
	mux.Handle("/metrics", promhttp.Handler())
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		auth.RequireScope(auth.ScopeActivitiesWrite, h.createActivity)(w, r)
	case http.MethodGet:
		h.withReadScope(h.listActivities)(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "unknown route")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.withReadScope(func(w http.ResponseWriter, r *http.Request) { h.getActivity(w, r, id) })(w, r)
	case http.MethodDelete:
		auth.RequireScope(auth.ScopeActivitiesWrite, func(w http.ResponseWriter, r *http.Request) { h.deleteActivity(w, r, id) })(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

// withReadScope admits callers holding either the read or the write scope.
func (h *Handler) withReadScope(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
			writeError(w, http.StatusForbidden, "forbidden", "scope activities:read required")
			return
		}
		next(w, r)
	}
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req CreateActivityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	activity, err := h.service.LogActivity(r.Context(), domain.LogActivityInput{
		TenantID:     claims.TenantID,
		UserID:       userOrSubject(req.UserID, claims),
		Kind:         req.Kind,
		Intensity:    req.Intensity,
		DurationMin:  req.DurationMin,
		BodyWeightKg: req.BodyWeightKg,
		StartedAt:    req.StartedAt,
		AccessToken:  strings.TrimSpace(r.Header.Get(FitnessTokenHeader)),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, _ := auth.FromContext(r.Context())
	activity, err := h.service.GetActivity(r.Context(), claims.TenantID, id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, _ := auth.FromContext(r.Context())
	if _, err := h.service.DeleteActivity(r.Context(), claims.TenantID, id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	query := r.URL.Query()

	limit := defaultListLimit
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), claims.TenantID, userOrSubject(query.Get("user_id"), claims), cursor, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.withReadScope(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.FromContext(r.Context())
		query := r.URL.Query()

		windowHours := 0
		if raw := query.Get("window_hours"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "validation_failed", "window_hours must be a non-negative integer")
				return
			}
			windowHours = parsed
		}

		summary, err := h.service.Summary(r.Context(), claims.TenantID, userOrSubject(query.Get("user_id"), claims), time.Duration(windowHours)*time.Hour)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSummaryResponse(summary, windowHours))
	})(w, r)
}

func (h *Handler) importSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	auth.RequireScope(auth.ScopeActivitiesWrite, func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.FromContext(r.Context())

		var req ImportRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		if req.WindowHours < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "window_hours must not be negative")
			return
		}

		result, err := h.service.ImportSessions(r.Context(), domain.ImportInput{
			TenantID:    claims.TenantID,
			UserID:      userOrSubject(req.UserID, claims),
			AccessToken: strings.TrimSpace(r.Header.Get(FitnessTokenHeader)),
			Window:      time.Duration(req.WindowHours) * time.Hour,
		})
		if err != nil {
			h.writeServiceError(w, err)
			return
		}

		items := make([]ActivityView, 0, len(result.Activities))
		for _, a := range result.Activities {
			items = append(items, toActivityView(a))
		}
		writeJSON(w, http.StatusOK, ImportResponse{
			Imported: result.Imported,
			Replayed: result.Replayed,
			Skipped:  result.Skipped,
			Items:    items,
		})
	})(w, r)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidActivity):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrFitnessNotConnected):
		writeError(w, http.StatusBadRequest, "fitness_not_connected", "header "+FitnessTokenHeader+" is required")
	case errors.Is(err, domain.ErrFetchSessions):
		h.logger.WithError(err).Warn("fitness provider request failed")
		writeError(w, http.StatusBadGateway, "upstream_error", "fitness provider request failed")
	default:
		h.logger.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func userOrSubject(userID string, claims *auth.Claims) string {
	if trimmed := strings.TrimSpace(userID); trimmed != "" {
		return trimmed
	}
	return claims.Subject
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

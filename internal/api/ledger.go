package api

import (
	"context"
	"net/http"
	"time"

	"example.com/fitpulse/internal/auth"
	"example.com/fitpulse/internal/consumer"
)

const (
	ledgerDateLayout  = "2006-01-02"
	defaultLedgerDays = 7
	maxLedgerDays     = 366
)

// LedgerReader reads the per-day calorie projection built by the ledger consumer.
type LedgerReader interface {
	DailyTotals(ctx context.Context, tenantID, userID string, from, to time.Time) ([]consumer.LedgerDay, error)
}

// LedgerDayView is one day of the calorie ledger.
type LedgerDayView struct {
	Day           string  `json:"day"`
	ActivityCount int     `json:"activity_count"`
	TotalMinutes  float64 `json:"total_minutes"`
	TotalCalories int     `json:"total_calories"`
}

// LedgerResponse lists ledger days oldest first.
type LedgerResponse struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Days []LedgerDayView `json:"days"`
}

// WithLedger enables GET /v1/ledger/daily. It must be called before RegisterRoutes.
func (h *Handler) WithLedger(reader LedgerReader) *Handler {
	h.ledger = reader
	return h
}

func (h *Handler) dailyLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.withReadScope(func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.FromContext(r.Context())
		query := r.URL.Query()

		to := h.now().UTC()
		if raw := query.Get("to"); raw != "" {
			parsed, err := time.Parse(ledgerDateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_failed", "to must be YYYY-MM-DD")
				return
			}
			to = parsed
		}
		from := to.AddDate(0, 0, -(defaultLedgerDays - 1))
		if raw := query.Get("from"); raw != "" {
			parsed, err := time.Parse(ledgerDateLayout, raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "validation_failed", "from must be YYYY-MM-DD")
				return
			}
			from = parsed
		}
		if from.After(to) || to.Sub(from) > maxLedgerDays*24*time.Hour {
			writeError(w, http.StatusBadRequest, "validation_failed", "invalid date range")
			return
		}

		days, err := h.ledger.DailyTotals(r.Context(), claims.TenantID, userOrSubject(query.Get("user_id"), claims), from, to)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		resp := LedgerResponse{
			From: from.Format(ledgerDateLayout),
			To:   to.Format(ledgerDateLayout),
			Days: make([]LedgerDayView, 0, len(days)),
		}
		for _, d := range days {
			resp.Days = append(resp.Days, LedgerDayView{
				Day:           d.Day.Format(ledgerDateLayout),
				ActivityCount: d.ActivityCount,
				TotalMinutes:  d.TotalMinutes,
				TotalCalories: d.TotalCalories,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	})(w, r)
}

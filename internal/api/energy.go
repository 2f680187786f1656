package api

import (
	"math"
	"net/http"
	"net/url"
	"strings"

	"example.com/fitpulse/internal/energy"
)

func (h *Handler) estimate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.withReadScope(func(w http.ResponseWriter, r *http.Request) {
		var req EstimateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		kind, err := energy.ParseKind(req.Kind)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}
		intensity := energy.DefaultIntensity
		if strings.TrimSpace(req.Intensity) != "" {
			if intensity, err = energy.ParseIntensity(req.Intensity); err != nil {
				writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
				return
			}
		}
		if !positive(req.DurationMin) {
			writeError(w, http.StatusBadRequest, "validation_failed", "duration_min must be > 0")
			return
		}
		weight := energy.DefaultBodyWeightKg
		if req.BodyWeightKg != nil {
			if !positive(*req.BodyWeightKg) {
				writeError(w, http.StatusBadRequest, "validation_failed", "body_weight_kg must be > 0")
				return
			}
			weight = *req.BodyWeightKg
		}

		met, _ := energy.MET(kind, intensity)
		writeJSON(w, http.StatusOK, EstimateResponse{
			Kind:         kind,
			Intensity:    intensity,
			DurationMin:  req.DurationMin,
			BodyWeightKg: weight,
			MET:          met,
			Calories:     energy.EstimateCaloriesForWeight(kind, intensity, req.DurationMin, weight),
		})
	})(w, r)
}

func (h *Handler) classify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.withReadScope(func(w http.ResponseWriter, r *http.Request) {
		var req ClassifyRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !positive(req.DurationMin) {
			writeError(w, http.StatusBadRequest, "validation_failed", "duration_min must be > 0")
			return
		}
		var calories float64
		if req.Calories != nil {
			calories = *req.Calories
		}
		if math.IsNaN(calories) || calories < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "calories must not be negative")
			return
		}

		resp := ClassifyResponse{Intensity: energy.ClassifyIntensity(calories, req.DurationMin)}
		if calories > 0 {
			rate := calories / req.DurationMin
			resp.CaloriesPerMinute = &rate
		}
		writeJSON(w, http.StatusOK, resp)
	})(w, r)
}

func (h *Handler) externalType(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	h.withReadScope(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.URL.EscapedPath(), "/v1/energy/external-types/")
		identifier, err := url.PathUnescape(raw)
		if err != nil || identifier == "" {
			writeError(w, http.StatusBadRequest, "validation_failed", "identifier is required")
			return
		}
		_, recognized := energy.LookupExternalActivityType(identifier)
		writeJSON(w, http.StatusOK, ExternalTypeResponse{
			Identifier: identifier,
			Kind:       energy.MapExternalActivityType(identifier),
			Recognized: recognized,
		})
	})(w, r)
}

func positive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

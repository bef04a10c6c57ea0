package handlers

import (
	"net/http"
	"time"

	"storefront/internal/common/errors"
)

// periodStart returns the start of the window named by period.
func periodStart(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "day":
		return now.AddDate(0, 0, -1), true
	case "week":
		return now.AddDate(0, 0, -7), true
	case "month":
		return now.AddDate(0, -1, 0), true
	case "year":
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// GetDashboardStats returns catalog statistics for a period
// @Summary Get dashboard statistics
// @Description Returns catalog counts and aggregates; "new" counts cover the requested period.
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Param period query string false "day, week, month or year (default: month)"
// @Success 200 {object} storage.DashboardStats
// @Failure 400 {object} ErrorResponse "Invalid period"
// @Router /api/stats/dashboard [get]
func (h *Handlers) GetDashboardStats(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "month"
	}

	since, ok := periodStart(period, time.Now().UTC())
	if !ok {
		writeError(w, r, errors.ValidationError("period must be one of day, week, month, year"))
		return
	}

	stats, err := h.storage.DashboardStats(r.Context(), period, since)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

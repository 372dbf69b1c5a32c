package handler

import (
	"net/http"
)

// DailyReport возвращает выручку за день из параметра date (YYYY-MM-DD).
func (h *Handler) DailyReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.DailyReport(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.writeError(w, r, "daily report", err)
		return
	}

	writeJSON(w, http.StatusOK, dailyReportResponse{
		Date:          report.Date,
		TotalRevenue:  report.TotalRevenue,
		TotalSessions: report.TotalSessions,
		Completed:     report.Completed,
		Active:        report.Active,
		Sessions:      toHistoryResponse(report.Sessions),
	})
}

// Stats возвращает статистику хранилища.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, r, "stats", err)
		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Sessions:       st.Sessions,
		History:        st.History,
		Jetons:         st.Jetons,
		ActiveSessions: st.ActiveSessions,
		LastUpdate:     st.GeneratedAt,
	})
}

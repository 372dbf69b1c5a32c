package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/playhouse/internal/service"
)

// Health сообщает о доступности сервиса и хранилища.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.writeError(w, r, "health", err)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{OK: true, Now: time.Now()})
}

// Scan обрабатывает скан жетона на входе или выходе.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	res, err := h.service.Scan(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, "scan", err)
		return
	}

	resp := scanResponse{
		OK:      true,
		Action:  string(res.Action),
		Message: "session started",
		Session: toSessionResponse(res.Session),
	}
	if res.Checkout != nil {
		resp.Message = "session finished"
		resp.Receipt = &res.Checkout.Receipt
		resp.PrintStatus = string(res.Checkout.PrintStatus)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Checkout закрывает сессию по идентификатору.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Checkout(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "checkout", err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		OK:          true,
		Action:      string(service.ActionCheckout),
		Message:     "session finished",
		Session:     toSessionResponse(res.Session),
		Receipt:     res.Receipt,
		PrintStatus: string(res.PrintStatus),
	})
}

// Extend продлевает оплаченное время сессии.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	var req extendRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, "extend", err)
		return
	}

	res, err := h.service.Extend(r.Context(), chi.URLParam(r, "id"), req.Minutes)
	if err != nil {
		h.writeError(w, r, "extend", err)
		return
	}

	writeJSON(w, http.StatusOK, extendResponse{
		OK:           true,
		Minutes:      res.Minutes,
		Cost:         res.Cost,
		NewPaidUntil: res.Session.PaidUntil,
		Session:      toSessionResponse(res.Session),
	})
}

// Reprint повторно печатает чек закрытой сессии.
func (h *Handler) Reprint(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Reprint(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "reprint", err)
		return
	}

	writeJSON(w, http.StatusOK, reprintResponse{
		OK:         true,
		Printed:    res.Printed,
		PrintError: res.PrintError,
		Receipt:    res.Receipt,
	})
}

// ListSessions возвращает последние сессии.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.ListSessions(r.Context())
	if err != nil {
		h.writeError(w, r, "list sessions", err)
		return
	}

	resp := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		resp = append(resp, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSession возвращает сессию по идентификатору.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*s))
}

// GetSessionByCode возвращает текущую или последнюю сессию жетона.
func (h *Handler) GetSessionByCode(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSessionByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, r, "get session by code", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*s))
}

// GetSessionByQR возвращает сессию по QR-коду.
func (h *Handler) GetSessionByQR(w http.ResponseWriter, r *http.Request) {
	s, err := h.service.GetSessionByQR(r.Context(), chi.URLParam(r, "qr"))
	if err != nil {
		h.writeError(w, r, "get session by qr", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*s))
}

// HistoryByToken возвращает историю посещений жетона.
func (h *Handler) HistoryByToken(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.HistoryByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, r, "history", err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		OK:      true,
		History: toHistoryResponse(entries),
		Total:   len(entries),
	})
}

// DeleteSession удаляет сессию.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "delete session", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: 1})
}

// DeleteAllSessions удаляет все сессии.
func (h *Handler) DeleteAllSessions(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.DeleteAllSessions(r.Context())
	if err != nil {
		h.writeError(w, r, "delete sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: n})
}

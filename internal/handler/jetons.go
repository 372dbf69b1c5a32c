package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/playhouse/internal/service"
)

func (req jetonRequest) input() service.JetonInput {
	return service.JetonInput{
		Code:            req.Code,
		Name:            req.Name,
		ChildName:       req.ChildName,
		ParentPhone:     req.ParentPhone,
		Tariff:          req.Tariff,
		Price:           req.Price,
		DurationMinutes: req.DurationMinutes,
		IsActive:        req.IsActive,
	}
}

// ListJetons возвращает все жетоны.
func (h *Handler) ListJetons(w http.ResponseWriter, r *http.Request) {
	jetons, err := h.service.ListJetons(r.Context())
	if err != nil {
		h.writeError(w, r, "list jetons", err)
		return
	}

	resp := make([]jetonResponse, 0, len(jetons))
	for _, j := range jetons {
		resp = append(resp, toJetonResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJeton возвращает жетон по идентификатору.
func (h *Handler) GetJeton(w http.ResponseWriter, r *http.Request) {
	j, err := h.service.GetJeton(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "get jeton", err)
		return
	}
	writeJSON(w, http.StatusOK, toJetonResponse(*j))
}

// CreateJeton создаёт жетон.
func (h *Handler) CreateJeton(w http.ResponseWriter, r *http.Request) {
	var req jetonRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, "create jeton", err)
		return
	}

	j, err := h.service.CreateJeton(r.Context(), req.input())
	if err != nil {
		h.writeError(w, r, "create jeton", err)
		return
	}
	writeJSON(w, http.StatusCreated, toJetonResponse(*j))
}

// UpdateJeton изменяет жетон.
func (h *Handler) UpdateJeton(w http.ResponseWriter, r *http.Request) {
	var req jetonRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, "update jeton", err)
		return
	}

	j, err := h.service.UpdateJeton(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.writeError(w, r, "update jeton", err)
		return
	}
	writeJSON(w, http.StatusOK, toJetonResponse(*j))
}

// DeleteJeton удаляет жетон.
func (h *Handler) DeleteJeton(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteJeton(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, "delete jeton", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: 1})
}

// DeleteAllJetons удаляет все жетоны.
func (h *Handler) DeleteAllJetons(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.DeleteAllJetons(r.Context())
	if err != nil {
		h.writeError(w, r, "delete jetons", err)
		return
	}
	writeJSON(w, http.StatusOK, deletedResponse{OK: true, Deleted: n})
}

// ValidateJeton проверяет жетон при скане штрихкода и отмечает его использование.
func (h *Handler) ValidateJeton(w http.ResponseWriter, r *http.Request) {
	var req validateJetonRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, "validate jeton", err)
		return
	}

	j, err := h.service.ValidateJeton(r.Context(), req.Code)
	if err != nil {
		h.writeError(w, r, "validate jeton", err)
		return
	}
	writeJSON(w, http.StatusOK, validateJetonResponse{Valid: true, Jeton: toJetonResponse(*j)})
}

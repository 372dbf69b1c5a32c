// Package handler содержит HTTP-обработчики API игровой комнаты.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/playhouse/internal/middleware"
	"github.com/mmeshcher/playhouse/internal/model"
	"github.com/mmeshcher/playhouse/internal/repository"
	"github.com/mmeshcher/playhouse/internal/service"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error

	Scan(ctx context.Context, code string) (*service.ScanResult, error)
	Checkout(ctx context.Context, id string) (*service.CheckoutResult, error)
	Extend(ctx context.Context, id string, minutes int) (*service.ExtendResult, error)
	Reprint(ctx context.Context, id string) (*service.ReprintResult, error)
	GetSession(ctx context.Context, id string) (*model.Session, error)
	GetSessionByCode(ctx context.Context, code string) (*model.Session, error)
	GetSessionByQR(ctx context.Context, qr string) (*model.Session, error)
	ListSessions(ctx context.Context) ([]model.Session, error)
	HistoryByToken(ctx context.Context, token string) ([]model.HistoryEntry, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteAllSessions(ctx context.Context) (int64, error)

	DailyReport(ctx context.Context, date string) (*model.DailyReport, error)
	Stats(ctx context.Context) (*model.Stats, error)

	ListJetons(ctx context.Context) ([]model.Jeton, error)
	GetJeton(ctx context.Context, id string) (*model.Jeton, error)
	CreateJeton(ctx context.Context, in service.JetonInput) (*model.Jeton, error)
	UpdateJeton(ctx context.Context, id string, in service.JetonInput) (*model.Jeton, error)
	DeleteJeton(ctx context.Context, id string) error
	DeleteAllJetons(ctx context.Context) (int64, error)
	ValidateJeton(ctx context.Context, code string) (*model.Jeton, error)
}

// Handler реализует HTTP-обработчики API игровой комнаты.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorStatus(err error) (int, string) {
	var vErr *ValidationError

	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, errInvalidBody):
		return http.StatusBadRequest, "invalid_body"
	case errors.Is(err, service.ErrInvalidToken):
		return http.StatusBadRequest, "invalid_token"
	case errors.Is(err, service.ErrInvalidTariff):
		return http.StatusBadRequest, "invalid_tariff"
	case errors.Is(err, service.ErrInvalidMinutes):
		return http.StatusBadRequest, "invalid_minutes"
	case errors.Is(err, service.ErrInvalidExtension):
		return http.StatusBadRequest, "invalid_extension"
	case errors.Is(err, service.ErrInvalidJeton):
		return http.StatusBadRequest, "invalid_jeton"
	case errors.Is(err, service.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_date"
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, repository.ErrJetonNotFound):
		return http.StatusNotFound, "jeton_not_found"
	case errors.Is(err, repository.ErrHistoryNotFound):
		return http.StatusNotFound, "history_not_found"
	case errors.Is(err, repository.ErrSessionAlreadyClosed):
		return http.StatusConflict, "session_already_closed"
	case errors.Is(err, repository.ErrSessionAlreadyOpen):
		return http.StatusConflict, "session_already_open"
	case errors.Is(err, repository.ErrJetonExists):
		return http.StatusConflict, "jeton_exists"
	case errors.Is(err, service.ErrSessionStillOpen):
		return http.StatusConflict, "session_still_open"
	case errors.Is(err, service.ErrScanTooSoon):
		return http.StatusTooManyRequests, "scan_too_soon"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError отвечает структурированной ошибкой. Ошибки 5xx логируются, клиенту уходит общий текст.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := errorStatus(err)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err), zap.String("path", r.URL.Path))
		message = http.StatusText(status)
	}

	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// decode читает JSON-тело запроса и проверяет его по тегам validate.
func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return Validate(dst)
}

// NotFound отвечает JSON-ошибкой на неизвестные маршруты API.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: errorBody{
		Code:    "route_not_found",
		Message: "API route not found",
	}})
}

// MethodNotAllowed отвечает JSON-ошибкой на неподдерживаемый метод.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: errorBody{
		Code:    "method_not_allowed",
		Message: http.StatusText(http.StatusMethodNotAllowed),
	}})
}

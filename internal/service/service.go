// Package service реализует бизнес-логику игровой комнаты: вход и выход по жетону,
// продление времени, повторную печать чеков, отчёты и управление жетонами.
package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/metrics"
	"github.com/mmeshcher/playhouse/internal/model"
)

var (
	// ErrInvalidToken возвращается при пустом или некорректном коде жетона.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInvalidTariff возвращается, если жетон не найден или неактивен.
	ErrInvalidTariff = errors.New("invalid or inactive tariff")
	// ErrScanTooSoon возвращается при повторном скане жетона в окне защиты от дребезга.
	ErrScanTooSoon = errors.New("token scanned too soon")
	// ErrInvalidMinutes возвращается, если число минут продления не положительное.
	ErrInvalidMinutes = errors.New("minutes must be positive")
	// ErrInvalidExtension возвращается при попытке продлить VIP-посещение.
	ErrInvalidExtension = errors.New("session cannot be extended")
	// ErrSessionStillOpen возвращается при попытке перепечатать чек открытой сессии.
	ErrSessionStillOpen = errors.New("session is still open")
	// ErrInvalidJeton возвращается при некорректных данных жетона.
	ErrInvalidJeton = errors.New("invalid jeton")
	// ErrInvalidDate возвращается, если дата отчёта не в формате YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

const (
	defaultListLimit    = 500
	defaultHistoryLimit = 100
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Ping(ctx context.Context) error
	Close() error

	CreateSession(ctx context.Context, s model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	FindOpenSessionByToken(ctx context.Context, token string) (*model.Session, error)
	FindLatestSessionByToken(ctx context.Context, token string) (*model.Session, error)
	FindSessionByQR(ctx context.Context, qr string) (*model.Session, error)
	ListSessions(ctx context.Context, limit int) ([]model.Session, error)
	ExtendSession(ctx context.Context, id string, minutes int, cost int64) (*model.Session, error)
	CloseSession(ctx context.Context, id string, closed model.Closed, h model.HistoryEntry) error
	DeleteSession(ctx context.Context, id string) error
	DeleteAllSessions(ctx context.Context) (int64, error)
	CountSessions(ctx context.Context) (int64, error)
	CountOpenSessions(ctx context.Context) (int64, error)
	CountOpenSessionsBetween(ctx context.Context, from, to time.Time) (int64, error)

	CreateJeton(ctx context.Context, j model.Jeton) error
	GetJeton(ctx context.Context, id string) (*model.Jeton, error)
	GetJetonByCode(ctx context.Context, code string) (*model.Jeton, error)
	ListJetons(ctx context.Context) ([]model.Jeton, error)
	UpdateJeton(ctx context.Context, j model.Jeton) (*model.Jeton, error)
	DeleteJeton(ctx context.Context, id string) error
	DeleteAllJetons(ctx context.Context) (int64, error)
	TouchJeton(ctx context.Context, code string, at time.Time) (*model.Jeton, error)
	CountJetons(ctx context.Context) (int64, error)

	GetHistoryBySession(ctx context.Context, sessionID string) (*model.HistoryEntry, error)
	ListHistoryByToken(ctx context.Context, token string, limit int) ([]model.HistoryEntry, error)
	ListHistoryBetween(ctx context.Context, from, to time.Time) ([]model.HistoryEntry, error)
	CountHistory(ctx context.Context) (int64, error)
}

// Printer печатает чек синхронно. Используется при повторной печати.
type Printer interface {
	Print(ctx context.Context, r billing.Receipt) error
}

// Publisher принимает чек после фиксации оплаты для печати в фоне.
type Publisher interface {
	Publish(r billing.Receipt) error
}

// ScanGuard отсекает повторные сканы одного жетона.
type ScanGuard interface {
	Allow(ctx context.Context, token string) (bool, error)
	Reset(ctx context.Context, token string) error
}

// Service содержит бизнес-логику игровой комнаты.
type Service struct {
	repo      Repository
	engine    *billing.Engine
	printer   Printer
	publisher Publisher
	guard     ScanGuard
	metrics   *metrics.Metrics
	logger    *zap.Logger
	tracer    trace.Tracer
	now       func() time.Time
	loc       *time.Location
}

// Option настраивает Service.
type Option func(*Service)

// WithPrinter задаёт принтер для повторной печати чеков.
func WithPrinter(p Printer) Option {
	return func(s *Service) { s.printer = p }
}

// WithPublisher задаёт очередь печати чеков после выхода.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithScanGuard включает защиту от повторных сканов.
func WithScanGuard(g ScanGuard) Option {
	return func(s *Service) { s.guard = g }
}

// WithMetrics задаёт метрики сервиса.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт логгер.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation задаёт часовой пояс, по которому считаются границы дня в отчётах.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// NewService создаёт новый сервис с указанным репозиторием и движком расчёта.
func NewService(repo Repository, engine *billing.Engine, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		engine: engine,
		logger: zap.NewNop(),
		tracer: otel.Tracer("github.com/mmeshcher/playhouse/internal/service"),
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = billing.NewEngine(billing.Config{})
	}
	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

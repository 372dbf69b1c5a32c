package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/model"
	"github.com/mmeshcher/playhouse/internal/repository"
)

// ScanAction обозначает действие, выполненное при скане жетона.
type ScanAction string

const (
	ActionCheckIn  ScanAction = "checkin"
	ActionCheckout ScanAction = "checkout"
)

// PrintStatus обозначает состояние печати чека.
type PrintStatus string

const (
	PrintQueued   PrintStatus = "queued"
	PrintFailed   PrintStatus = "failed"
	PrintDisabled PrintStatus = "disabled"
)

// CheckoutResult содержит итог закрытия сессии.
type CheckoutResult struct {
	Session     model.Session
	Receipt     billing.Receipt
	PrintStatus PrintStatus
}

// ScanResult содержит итог обработки скана: открытие новой сессии либо выход по открытой.
type ScanResult struct {
	Action   ScanAction
	Session  model.Session
	Checkout *CheckoutResult
}

// ExtendResult содержит итог продления сессии.
type ExtendResult struct {
	Session model.Session
	Minutes int
	Cost    int64
}

// ReprintResult содержит итог повторной печати чека.
type ReprintResult struct {
	Receipt    billing.Receipt
	Printed    bool
	PrintError string
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Scan обрабатывает скан жетона: если у жетона есть открытая сессия, выполняет выход,
// иначе открывает новую сессию по тарифу жетона.
func (s *Service) Scan(ctx context.Context, code string) (res *ScanResult, err error) {
	code = strings.TrimSpace(code)

	ctx, span := s.startSpan(ctx, "service.Scan", attribute.String("token", code))
	defer func() { endSpan(span, err) }()

	if code == "" {
		return nil, ErrInvalidToken
	}

	if s.guard != nil {
		ok, gErr := s.guard.Allow(ctx, code)
		if gErr != nil {
			s.logger.Warn("scan guard unavailable", zap.String("token", code), zap.Error(gErr))
		} else if !ok {
			return nil, ErrScanTooSoon
		} else {
			// Отклонённый скан не должен блокировать повторную попытку.
			defer func() {
				if err == nil {
					return
				}
				if rErr := s.guard.Reset(ctx, code); rErr != nil {
					s.logger.Warn("scan guard reset failed", zap.String("token", code), zap.Error(rErr))
				}
			}()
		}
	}

	jeton, err := s.repo.GetJetonByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrJetonNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidTariff, code)
		}
		return nil, err
	}
	if !jeton.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTariff, code)
	}

	open, err := s.repo.FindOpenSessionByToken(ctx, code)
	switch {
	case err == nil:
		out, err := s.checkout(ctx, open, code)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Action: ActionCheckout, Session: out.Session, Checkout: out}, nil
	case errors.Is(err, repository.ErrSessionNotFound):
		session, err := s.checkIn(ctx, jeton)
		if err != nil {
			return nil, err
		}
		return &ScanResult{Action: ActionCheckIn, Session: *session}, nil
	default:
		return nil, err
	}
}

func (s *Service) checkIn(ctx context.Context, jeton *model.Jeton) (*model.Session, error) {
	now := s.now()
	paidUntil, base := s.engine.CheckIn(now, jeton.Price, jeton.DurationMinutes)

	tariff := jeton.Tariff
	if tariff == "" {
		tariff = model.TariffStandard
	}

	session := model.Session{
		ID:         uuid.NewString(),
		TokenCode:  jeton.Code,
		QRCode:     uuid.NewString(),
		JetonName:  jeton.Name,
		Tariff:     tariff,
		EntryTime:  now,
		PaidUntil:  paidUntil,
		BaseAmount: base,
		State:      model.Open{},
		CreatedAt:  now,
	}

	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if _, err := s.repo.TouchJeton(ctx, jeton.Code, now); err != nil {
		s.logger.Warn("update jeton usage", zap.String("token", jeton.Code), zap.Error(err))
	}

	s.metrics.CheckIn(string(tariff))
	s.logger.Info("session opened",
		zap.String("session_id", session.ID),
		zap.String("token", session.TokenCode),
		zap.String("tariff", string(tariff)),
		zap.Int64("base_amount", base),
	)

	return &session, nil
}

// Checkout закрывает сессию вручную по её идентификатору.
func (s *Service) Checkout(ctx context.Context, id string) (res *CheckoutResult, err error) {
	ctx, span := s.startSpan(ctx, "service.Checkout", attribute.String("session_id", id))
	defer func() { endSpan(span, err) }()

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.checkout(ctx, session, "")
}

func (s *Service) checkout(ctx context.Context, session *model.Session, token string) (*CheckoutResult, error) {
	if !session.IsOpen() {
		return nil, repository.ErrSessionAlreadyClosed
	}

	base := session.BaseAmount
	if base <= 0 {
		base = s.engine.DefaultBaseAmount()
	}

	now := s.now()
	result := s.engine.Checkout(billing.CheckoutInput{
		Tariff:     session.Tariff,
		EntryTime:  session.EntryTime,
		PaidUntil:  session.PaidUntil,
		BaseAmount: base,
		Now:        now,
	})

	closed := model.Closed{
		ExitTime:   result.ExitTime,
		PaidUntil:  result.PaidUntil,
		PaidAmount: result.PaidAmount,
	}
	entry := model.HistoryEntry{
		ID:         uuid.NewString(),
		SessionID:  session.ID,
		TokenCode:  session.TokenCode,
		JetonName:  session.JetonName,
		Tariff:     session.Tariff,
		EntryTime:  session.EntryTime,
		ExitTime:   result.ExitTime,
		PaidUntil:  result.PaidUntil,
		BaseAmount: base,
		PaidAmount: result.PaidAmount,
		CreatedAt:  now,
	}

	if err := s.repo.CloseSession(ctx, session.ID, closed, entry); err != nil {
		reason := "error"
		if errors.Is(err, repository.ErrSessionAlreadyClosed) {
			reason = "already_closed"
		}
		s.metrics.CheckoutFailed(string(session.Tariff), reason)
		return nil, err
	}

	out := *session
	out.PaidUntil = result.PaidUntil
	out.BaseAmount = base
	out.State = closed

	receipt := s.engine.BuildReceipt(billing.ReceiptInput{
		SessionID:    session.ID,
		Token:        token,
		SessionToken: session.TokenCode,
		EntryTime:    session.EntryTime,
		BaseAmount:   base,
		Result:       result,
	}, now)

	s.metrics.Checkout(string(session.Tariff), result.PaidAmount, receipt.ExtraMinutes)
	s.logger.Info("session closed",
		zap.String("session_id", session.ID),
		zap.String("token", session.TokenCode),
		zap.Int64("paid_amount", result.PaidAmount),
		zap.Int64("extra_fee", receipt.ExtraFee),
	)

	return &CheckoutResult{
		Session:     out,
		Receipt:     receipt,
		PrintStatus: s.publish(receipt),
	}, nil
}

func (s *Service) publish(r billing.Receipt) PrintStatus {
	if s.publisher == nil {
		return PrintDisabled
	}
	if err := s.publisher.Publish(r); err != nil {
		s.logger.Error("queue receipt for printing", zap.String("session_id", r.SessionID), zap.Error(err))
		return PrintFailed
	}
	return PrintQueued
}

// Extend продлевает оплаченное время открытой сессии на указанное число минут.
func (s *Service) Extend(ctx context.Context, id string, minutes int) (res *ExtendResult, err error) {
	ctx, span := s.startSpan(ctx, "service.Extend",
		attribute.String("session_id", id),
		attribute.Int("minutes", minutes),
	)
	defer func() { endSpan(span, err) }()

	if minutes <= 0 {
		return nil, ErrInvalidMinutes
	}

	session, err := s.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if !session.IsOpen() {
		return nil, repository.ErrSessionAlreadyClosed
	}
	if session.Tariff == model.TariffVIP {
		return nil, fmt.Errorf("%w: vip sessions are not time-limited", ErrInvalidExtension)
	}

	cost := s.engine.ExtensionCost(minutes)
	updated, err := s.repo.ExtendSession(ctx, id, minutes, cost)
	if err != nil {
		return nil, err
	}

	s.logger.Info("session extended",
		zap.String("session_id", id),
		zap.Int("minutes", minutes),
		zap.Int64("cost", cost),
	)

	return &ExtendResult{Session: *updated, Minutes: minutes, Cost: cost}, nil
}

// Reprint заново формирует чек закрытой сессии по записи журнала и печатает его.
// Ошибка печати не считается ошибкой вызова и возвращается в результате.
func (s *Service) Reprint(ctx context.Context, id string) (res *ReprintResult, err error) {
	ctx, span := s.startSpan(ctx, "service.Reprint", attribute.String("session_id", id))
	defer func() { endSpan(span, err) }()

	h, err := s.repo.GetHistoryBySession(ctx, id)
	if err != nil {
		if !errors.Is(err, repository.ErrHistoryNotFound) {
			return nil, err
		}
		session, sErr := s.repo.GetSession(ctx, id)
		if sErr != nil {
			return nil, sErr
		}
		if session.IsOpen() {
			return nil, ErrSessionStillOpen
		}
		return nil, repository.ErrSessionNotFound
	}

	receipt := s.engine.BuildReceipt(billing.ReceiptInput{
		SessionID:    h.SessionID,
		SessionToken: h.TokenCode,
		EntryTime:    h.EntryTime,
		BaseAmount:   h.BaseAmount,
		Result: billing.Result{
			PaidUntil:  h.PaidUntil,
			ExitTime:   h.ExitTime,
			PaidAmount: h.PaidAmount,
		},
	}, s.now())

	out := &ReprintResult{Receipt: receipt}
	if s.printer == nil {
		out.PrintError = "printer not configured"
		return out, nil
	}

	if pErr := s.printer.Print(ctx, receipt); pErr != nil {
		s.metrics.PrintJob("failed")
		s.logger.Error("reprint receipt", zap.String("session_id", id), zap.Error(pErr))
		out.PrintError = pErr.Error()
		return out, nil
	}

	s.metrics.PrintJob("ok")
	out.Printed = true
	return out, nil
}

// GetSession возвращает сессию по идентификатору.
func (s *Service) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return s.repo.GetSession(ctx, id)
}

// GetSessionByCode возвращает открытую сессию жетона, а если её нет, последнюю закрытую.
func (s *Service) GetSessionByCode(ctx context.Context, code string) (*model.Session, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidToken
	}

	session, err := s.repo.FindOpenSessionByToken(ctx, code)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return s.repo.FindLatestSessionByToken(ctx, code)
	}
	return session, err
}

// GetSessionByQR возвращает сессию по QR-коду чека.
func (s *Service) GetSessionByQR(ctx context.Context, qr string) (*model.Session, error) {
	return s.repo.FindSessionByQR(ctx, strings.TrimSpace(qr))
}

// ListSessions возвращает последние сессии.
func (s *Service) ListSessions(ctx context.Context) ([]model.Session, error) {
	return s.repo.ListSessions(ctx, defaultListLimit)
}

// HistoryByToken возвращает историю посещений по жетону.
func (s *Service) HistoryByToken(ctx context.Context, token string) ([]model.HistoryEntry, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	return s.repo.ListHistoryByToken(ctx, token, defaultHistoryLimit)
}

// DeleteSession удаляет сессию.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.repo.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session deleted", zap.String("session_id", id))
	return nil
}

// DeleteAllSessions удаляет все сессии и возвращает их количество.
func (s *Service) DeleteAllSessions(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllSessions(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("all sessions deleted", zap.Int64("count", n))
	return n, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/playhouse/internal/model"
	"github.com/mmeshcher/playhouse/internal/repository"
	"github.com/mmeshcher/playhouse/internal/validation"
)

// JetonInput содержит данные для создания или изменения жетона.
type JetonInput struct {
	Code            string
	Name            string
	ChildName       string
	ParentPhone     string
	Tariff          string
	Price           int64
	DurationMinutes int
	// IsActive == nil при создании означает активный жетон, при изменении сохраняет прежнее значение.
	IsActive *bool
}

func (in JetonInput) apply(j *model.Jeton) error {
	code := strings.TrimSpace(in.Code)
	if !validation.IsValidJetonCode(code) {
		return fmt.Errorf("%w: code %q has invalid format", ErrInvalidJeton, code)
	}

	tariff, err := model.ParseTariffClass(in.Tariff)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTariff, err)
	}

	if in.Price < 0 || in.DurationMinutes < 0 {
		return fmt.Errorf("%w: price and duration must not be negative", ErrInvalidJeton)
	}

	j.Code = code
	j.Name = strings.TrimSpace(in.Name)
	j.ChildName = strings.TrimSpace(in.ChildName)
	j.ParentPhone = strings.TrimSpace(in.ParentPhone)
	j.Tariff = tariff
	j.Price = in.Price
	j.DurationMinutes = in.DurationMinutes
	if in.IsActive != nil {
		j.IsActive = *in.IsActive
	}
	return nil
}

// ListJetons возвращает все жетоны.
func (s *Service) ListJetons(ctx context.Context) ([]model.Jeton, error) {
	return s.repo.ListJetons(ctx)
}

// GetJeton возвращает жетон по идентификатору.
func (s *Service) GetJeton(ctx context.Context, id string) (*model.Jeton, error) {
	return s.repo.GetJeton(ctx, id)
}

// CreateJeton создаёт жетон.
func (s *Service) CreateJeton(ctx context.Context, in JetonInput) (*model.Jeton, error) {
	now := s.now()
	j := model.Jeton{
		ID:        uuid.NewString(),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := in.apply(&j); err != nil {
		return nil, err
	}

	if err := s.repo.CreateJeton(ctx, j); err != nil {
		return nil, err
	}

	s.logger.Info("jeton created", zap.String("jeton_id", j.ID), zap.String("code", j.Code))
	return &j, nil
}

// UpdateJeton изменяет жетон.
func (s *Service) UpdateJeton(ctx context.Context, id string, in JetonInput) (*model.Jeton, error) {
	j, err := s.repo.GetJeton(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(j); err != nil {
		return nil, err
	}
	return s.repo.UpdateJeton(ctx, *j)
}

// DeleteJeton удаляет жетон.
func (s *Service) DeleteJeton(ctx context.Context, id string) error {
	if err := s.repo.DeleteJeton(ctx, id); err != nil {
		return err
	}
	s.logger.Info("jeton deleted", zap.String("jeton_id", id))
	return nil
}

// DeleteAllJetons удаляет все жетоны и возвращает их количество.
func (s *Service) DeleteAllJetons(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllJetons(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Warn("all jetons deleted", zap.Int64("count", n))
	return n, nil
}

// ValidateJeton проверяет, что жетон существует и активен, и отмечает его использование.
func (s *Service) ValidateJeton(ctx context.Context, code string) (*model.Jeton, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidToken
	}

	j, err := s.repo.GetJetonByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !j.IsActive {
		return j, fmt.Errorf("%w: %s", ErrInvalidTariff, code)
	}

	touched, err := s.repo.TouchJeton(ctx, code, s.now())
	if err != nil {
		if errors.Is(err, repository.ErrJetonNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update jeton usage: %w", err)
	}
	return touched, nil
}

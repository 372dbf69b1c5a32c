package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmeshcher/playhouse/internal/model"
)

const dateLayout = "2006-01-02"

// DailyReport возвращает выручку за день date (YYYY-MM-DD, пустая строка означает сегодня).
// Границы дня считаются в часовом поясе сервиса.
func (s *Service) DailyReport(ctx context.Context, date string) (*model.DailyReport, error) {
	var day time.Time
	if date = strings.TrimSpace(date); date == "" {
		now := s.now().In(s.loc)
		day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	} else {
		parsed, err := time.ParseInLocation(dateLayout, date, s.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDate, date)
		}
		day = parsed
	}
	next := day.AddDate(0, 0, 1)

	entries, err := s.repo.ListHistoryBetween(ctx, day, next)
	if err != nil {
		return nil, err
	}

	active, err := s.repo.CountOpenSessionsBetween(ctx, day, next)
	if err != nil {
		return nil, err
	}

	report := &model.DailyReport{
		Date:      day.Format(dateLayout),
		Completed: len(entries),
		Active:    int(active),
		Sessions:  entries,
	}
	report.TotalSessions = report.Completed + report.Active
	for _, e := range entries {
		report.TotalRevenue += e.PaidAmount
	}

	return report, nil
}

// Stats возвращает количество записей в хранилище.
func (s *Service) Stats(ctx context.Context) (*model.Stats, error) {
	sessions, err := s.repo.CountSessions(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.CountHistory(ctx)
	if err != nil {
		return nil, err
	}
	jetons, err := s.repo.CountJetons(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.CountOpenSessions(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Stats{
		Sessions:       sessions,
		History:        history,
		Jetons:         jetons,
		ActiveSessions: active,
		GeneratedAt:    s.now(),
	}, nil
}

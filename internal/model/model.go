// Package model содержит доменные сущности сервиса игровой комнаты.
package model

import (
	"fmt"
	"strings"
	"time"
)

// TariffClass описывает класс тарифа, закреплённый за жетоном.
type TariffClass string

const (
	TariffStandard TariffClass = "standard"
	TariffVIP      TariffClass = "vip"
)

// ParseTariffClass разбирает строковое представление тарифа. Пустая строка означает стандартный тариф.
func ParseTariffClass(s string) (TariffClass, error) {
	switch TariffClass(strings.ToLower(strings.TrimSpace(s))) {
	case "", TariffStandard:
		return TariffStandard, nil
	case TariffVIP:
		return TariffVIP, nil
	default:
		return "", fmt.Errorf("unknown tariff class %q", s)
	}
}

// SessionState описывает состояние сессии: Open либо Closed.
type SessionState interface {
	sessionState()
}

// Open означает, что сессия открыта и ребёнок ещё в игровой.
type Open struct{}

// Closed означает закрытую сессию. Переход в это состояние происходит ровно один раз.
type Closed struct {
	ExitTime   time.Time
	PaidUntil  time.Time
	PaidAmount int64
}

func (Open) sessionState()   {}
func (Closed) sessionState() {}

// Session описывает одно посещение от входа до выхода.
type Session struct {
	ID         string
	TokenCode  string
	QRCode     string
	JetonName  string
	Tariff     TariffClass
	EntryTime  time.Time
	PaidUntil  time.Time
	BaseAmount int64
	State      SessionState
	CreatedAt  time.Time
}

// IsOpen сообщает, открыта ли сессия.
func (s Session) IsOpen() bool {
	_, closed := s.State.(Closed)
	return !closed
}

// Closed возвращает итог закрытой сессии.
func (s Session) Closed() (Closed, bool) {
	c, ok := s.State.(Closed)
	return c, ok
}

// Jeton описывает физический жетон, определяющий тариф посещения.
type Jeton struct {
	ID              string
	Code            string
	Name            string
	ChildName       string
	ParentPhone     string
	Tariff          TariffClass
	Price           int64
	DurationMinutes int
	IsActive        bool
	UsageCount      int
	LastUsedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HistoryEntry хранит запись журнала о закрытой сессии для отчётов и повторной печати чека.
type HistoryEntry struct {
	ID         string
	SessionID  string
	TokenCode  string
	JetonName  string
	Tariff     TariffClass
	EntryTime  time.Time
	ExitTime   time.Time
	PaidUntil  time.Time
	BaseAmount int64
	PaidAmount int64
	CreatedAt  time.Time
}

// DailyReport содержит сводку выручки за календарный день.
type DailyReport struct {
	Date          string
	TotalRevenue  int64
	TotalSessions int
	Completed     int
	Active        int
	Sessions      []HistoryEntry
}

// Stats содержит количество записей в хранилище.
type Stats struct {
	Sessions       int64
	History        int64
	Jetons         int64
	ActiveSessions int64
	GeneratedAt    time.Time
}

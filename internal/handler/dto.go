package handler

import (
	"time"

	"github.com/mmeshcher/playhouse/internal/billing"
	"github.com/mmeshcher/playhouse/internal/model"
)

type sessionResponse struct {
	ID         string     `json:"id"`
	TokenCode  string     `json:"token_code"`
	QRCode     string     `json:"qr_code"`
	JetonName  string     `json:"jeton_name,omitempty"`
	Tariff     string     `json:"tariff"`
	Status     string     `json:"status"`
	EntryTime  time.Time  `json:"entry_time"`
	PaidUntil  time.Time  `json:"paid_until"`
	BaseAmount int64      `json:"base_amount"`
	ExitTime   *time.Time `json:"exit_time,omitempty"`
	PaidAmount *int64     `json:"paid_amount,omitempty"`
}

func toSessionResponse(s model.Session) sessionResponse {
	resp := sessionResponse{
		ID:         s.ID,
		TokenCode:  s.TokenCode,
		QRCode:     s.QRCode,
		JetonName:  s.JetonName,
		Tariff:     string(s.Tariff),
		Status:     "open",
		EntryTime:  s.EntryTime,
		PaidUntil:  s.PaidUntil,
		BaseAmount: s.BaseAmount,
	}
	if closed, ok := s.Closed(); ok {
		resp.Status = "closed"
		resp.ExitTime = &closed.ExitTime
		resp.PaidAmount = &closed.PaidAmount
	}
	return resp
}

type historyEntryResponse struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	TokenCode  string    `json:"token_code"`
	JetonName  string    `json:"jeton_name,omitempty"`
	Tariff     string    `json:"tariff"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	PaidUntil  time.Time `json:"paid_until"`
	BaseAmount int64     `json:"base_amount"`
	PaidAmount int64     `json:"paid_amount"`
}

func toHistoryResponse(entries []model.HistoryEntry) []historyEntryResponse {
	resp := make([]historyEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, historyEntryResponse{
			ID:         e.ID,
			SessionID:  e.SessionID,
			TokenCode:  e.TokenCode,
			JetonName:  e.JetonName,
			Tariff:     string(e.Tariff),
			EntryTime:  e.EntryTime,
			ExitTime:   e.ExitTime,
			PaidUntil:  e.PaidUntil,
			BaseAmount: e.BaseAmount,
			PaidAmount: e.PaidAmount,
		})
	}
	return resp
}

type jetonResponse struct {
	ID              string     `json:"id"`
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	ChildName       string     `json:"child_name,omitempty"`
	ParentPhone     string     `json:"parent_phone,omitempty"`
	Tariff          string     `json:"tariff"`
	Price           int64      `json:"price"`
	DurationMinutes int        `json:"duration_minutes"`
	IsActive        bool       `json:"is_active"`
	UsageCount      int        `json:"usage_count"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toJetonResponse(j model.Jeton) jetonResponse {
	return jetonResponse{
		ID:              j.ID,
		Code:            j.Code,
		Name:            j.Name,
		ChildName:       j.ChildName,
		ParentPhone:     j.ParentPhone,
		Tariff:          string(j.Tariff),
		Price:           j.Price,
		DurationMinutes: j.DurationMinutes,
		IsActive:        j.IsActive,
		UsageCount:      j.UsageCount,
		LastUsedAt:      j.LastUsedAt,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

type scanResponse struct {
	OK          bool             `json:"ok"`
	Action      string           `json:"action"`
	Message     string           `json:"message"`
	Session     sessionResponse  `json:"session"`
	Receipt     *billing.Receipt `json:"receipt,omitempty"`
	PrintStatus string           `json:"print_status,omitempty"`
}

type checkoutResponse struct {
	OK          bool            `json:"ok"`
	Action      string          `json:"action"`
	Message     string          `json:"message"`
	Session     sessionResponse `json:"session"`
	Receipt     billing.Receipt `json:"receipt"`
	PrintStatus string          `json:"print_status"`
}

type extendRequest struct {
	Minutes int `json:"minutes" validate:"gt=0"`
}

type extendResponse struct {
	OK           bool            `json:"ok"`
	Minutes      int             `json:"minutes"`
	Cost         int64           `json:"cost"`
	NewPaidUntil time.Time       `json:"new_paid_until"`
	Session      sessionResponse `json:"session"`
}

type reprintResponse struct {
	OK         bool            `json:"ok"`
	Printed    bool            `json:"printed"`
	PrintError string          `json:"print_error,omitempty"`
	Receipt    billing.Receipt `json:"receipt"`
}

type historyResponse struct {
	OK      bool                   `json:"ok"`
	History []historyEntryResponse `json:"history"`
	Total   int                    `json:"total"`
}

type deletedResponse struct {
	OK      bool  `json:"ok"`
	Deleted int64 `json:"deleted"`
}

type jetonRequest struct {
	Code            string `json:"code" validate:"required,jeton"`
	Name            string `json:"name" validate:"max=100"`
	ChildName       string `json:"child_name" validate:"max=100"`
	ParentPhone     string `json:"parent_phone" validate:"max=32"`
	Tariff          string `json:"tariff" validate:"omitempty,oneof=standard vip"`
	Price           int64  `json:"price" validate:"gte=0"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0"`
	IsActive        *bool  `json:"is_active"`
}

type validateJetonRequest struct {
	Code string `json:"code" validate:"required"`
}

type validateJetonResponse struct {
	Valid bool          `json:"valid"`
	Jeton jetonResponse `json:"jeton"`
}

type dailyReportResponse struct {
	Date          string                 `json:"date"`
	TotalRevenue  int64                  `json:"total_revenue"`
	TotalSessions int                    `json:"total_sessions"`
	Completed     int                    `json:"completed_sessions"`
	Active        int                    `json:"active_sessions"`
	Sessions      []historyEntryResponse `json:"sessions"`
}

type statsResponse struct {
	Sessions       int64     `json:"sessions"`
	History        int64     `json:"history"`
	Jetons         int64     `json:"jetons"`
	ActiveSessions int64     `json:"active_sessions"`
	LastUpdate     time.Time `json:"last_update"`
}

type healthResponse struct {
	OK  bool      `json:"ok"`
	Now time.Time `json:"now"`
}

package billing

import (
	"time"
)

// Rounding описывает политику округления, применённую к чеку.
type Rounding struct {
	RoundTo  int64    `json:"round_to"`
	Strategy Strategy `json:"strategy"`
}

// Receipt описывает итоговый документ об оплате посещения.
type Receipt struct {
	SessionID       string    `json:"session_id"`
	Token           string    `json:"token"`
	Currency        string    `json:"currency"`
	EntryTime       time.Time `json:"entry_time"`
	PaidUntil       time.Time `json:"paid_until"`
	ExitTime        time.Time `json:"exit_time"`
	IncludedMinutes int       `json:"included_minutes"`
	ExtraMinutes    int       `json:"extra_minutes"`
	PerMinute       float64   `json:"per_minute"`
	BaseAmount      int64     `json:"base_amount"`
	ExtraFee        int64     `json:"extra_fee"`
	Total           int64     `json:"total"`
	Rounding        Rounding  `json:"rounding"`
	PrintedAt       time.Time `json:"printed_at"`
}

// ReceiptInput содержит данные закрытой сессии для построения чека.
type ReceiptInput struct {
	SessionID string
	// Token содержит жетон, предъявленный при выходе. Пустое значение заменяется SessionToken.
	Token        string
	SessionToken string
	EntryTime    time.Time
	BaseAmount   int64
	Result       Result
}

// BuildReceipt строит чек по результату расчёта. Все поля, кроме PrintedAt,
// однозначно определяются входными данными.
func (e *Engine) BuildReceipt(in ReceiptInput, printedAt time.Time) Receipt {
	token := in.Token
	if token == "" {
		token = in.SessionToken
	}

	total := in.Result.PaidAmount
	extraFee := total - in.BaseAmount
	if extraFee < 0 {
		extraFee = 0
	}

	perMinute, _ := e.PerMinuteRate().Round(2).Float64()

	return Receipt{
		SessionID:       in.SessionID,
		Token:           token,
		Currency:        e.cfg.Currency,
		EntryTime:       in.EntryTime,
		PaidUntil:       in.Result.PaidUntil,
		ExitTime:        in.Result.ExitTime,
		IncludedMinutes: MinutesBetween(in.EntryTime, in.Result.PaidUntil),
		ExtraMinutes:    MinutesBetween(in.Result.PaidUntil, in.Result.ExitTime),
		PerMinute:       perMinute,
		BaseAmount:      in.BaseAmount,
		ExtraFee:        extraFee,
		Total:           total,
		Rounding: Rounding{
			RoundTo:  e.cfg.RoundTo,
			Strategy: e.cfg.Strategy,
		},
		PrintedAt: printedAt,
	}
}

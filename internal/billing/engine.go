// Package billing реализует расчёт оплаты посещений: округление сумм, подсчёт минут,
// расчёт суммы при выходе и формирование чека.
//
// Все функции пакета чистые: они не обращаются к хранилищу, часам или сети.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/playhouse/internal/model"
)

const (
	// DefaultBaseCost задаёт цену одного часа, если она не указана в конфигурации.
	DefaultBaseCost int64 = 50000

	// DefaultGraceMinutes задаёт число бесплатных минут сверх оплаченного времени.
	DefaultGraceMinutes = 10

	// GraceDisabled в Config.GraceMinutes отключает льготный период: переплата считается с первой минуты.
	GraceDisabled = -1

	// DefaultDuration задаёт длительность тарифа, если у жетона она не указана.
	DefaultDuration = 60 * time.Minute

	// DefaultCurrency задаёт валюту, печатаемую на чеке.
	DefaultCurrency = "UZS"
)

var sixty = decimal.NewFromInt(60)

// Config содержит неизменяемые параметры расчёта.
type Config struct {
	BaseCost int64
	RoundTo  int64
	Strategy Strategy

	// GraceMinutes задаёт бесплатные минуты сверх оплаченного времени.
	// Ноль означает DefaultGraceMinutes, отрицательное значение отключает льготный период.
	GraceMinutes    int
	DefaultDuration time.Duration
	Currency        string
}

// Engine выполняет все денежные и временные расчёты сервиса.
type Engine struct {
	cfg Config
}

// NewEngine создаёт движок расчёта. Незаполненные поля конфигурации получают значения по умолчанию.
func NewEngine(cfg Config) *Engine {
	if cfg.BaseCost <= 0 {
		cfg.BaseCost = DefaultBaseCost
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyCeil
	}
	switch {
	case cfg.GraceMinutes == 0:
		cfg.GraceMinutes = DefaultGraceMinutes
	case cfg.GraceMinutes < 0:
		cfg.GraceMinutes = 0
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = DefaultDuration
	}
	if cfg.Currency == "" {
		cfg.Currency = DefaultCurrency
	}
	return &Engine{cfg: cfg}
}

// PerMinuteRate возвращает стоимость одной минуты.
func (e *Engine) PerMinuteRate() decimal.Decimal {
	return decimal.NewFromInt(e.cfg.BaseCost).Div(sixty)
}

// DefaultBaseAmount возвращает округлённую цену часа. Используется, когда базовая сумма сессии неизвестна.
func (e *Engine) DefaultBaseAmount() int64 {
	return e.Round(decimal.NewFromInt(e.cfg.BaseCost))
}

// minutesCost считает стоимость минут; умножение выполняется до деления на 60.
func (e *Engine) minutesCost(minutes int) decimal.Decimal {
	return decimal.NewFromInt(e.cfg.BaseCost).Mul(decimal.NewFromInt(int64(minutes))).Div(sixty)
}

// CheckIn рассчитывает базовую сумму и время, до которого оплачено посещение.
// price <= 0 означает цену часа из конфигурации, при durationMinutes <= 0 берётся длительность по умолчанию.
func (e *Engine) CheckIn(entry time.Time, price int64, durationMinutes int) (paidUntil time.Time, baseAmount int64) {
	if price <= 0 {
		baseAmount = e.DefaultBaseAmount()
	} else {
		baseAmount = e.Round(decimal.NewFromInt(price))
	}

	duration := e.cfg.DefaultDuration
	if durationMinutes > 0 {
		duration = time.Duration(durationMinutes) * time.Minute
	}

	return entry.Add(duration), baseAmount
}

// ExtensionCost возвращает стоимость продления посещения на указанное число минут.
func (e *Engine) ExtensionCost(minutes int) int64 {
	if minutes <= 0 {
		return 0
	}
	return e.Round(e.minutesCost(minutes))
}

// CheckoutInput содержит снимок открытой сессии на момент выхода.
type CheckoutInput struct {
	Tariff     model.TariffClass
	EntryTime  time.Time
	PaidUntil  time.Time
	BaseAmount int64
	Now        time.Time
}

// Result содержит итог расчёта при выходе.
type Result struct {
	PaidUntil  time.Time
	ExitTime   time.Time
	PaidAmount int64
}

// Checkout рассчитывает итоговую сумму посещения.
//
// VIP оплачивает ровно базовую сумму, время оплаты переносится на момент входа.
// Для стандартного тарифа первые GraceMinutes минут сверх оплаченного времени бесплатны,
// остальные минуты тарифицируются поминутно от цены часа.
func (e *Engine) Checkout(in CheckoutInput) Result {
	paidUntil := in.PaidUntil
	if paidUntil.IsZero() {
		paidUntil = in.EntryTime
	}

	base := in.BaseAmount
	if base <= 0 {
		base = e.DefaultBaseAmount()
	}

	if in.Tariff == model.TariffVIP {
		return Result{
			PaidUntil:  in.EntryTime,
			ExitTime:   in.Now,
			PaidAmount: base,
		}
	}

	if !in.Now.After(paidUntil) {
		return Result{
			PaidUntil:  paidUntil,
			ExitTime:   in.Now,
			PaidAmount: base,
		}
	}

	extra := MinutesBetween(paidUntil, in.Now)

	var fee int64
	if extra > e.cfg.GraceMinutes {
		fee = e.Round(e.minutesCost(extra - e.cfg.GraceMinutes))
	}

	return Result{
		PaidUntil:  paidUntil,
		ExitTime:   in.Now,
		PaidAmount: base + fee,
	}
}

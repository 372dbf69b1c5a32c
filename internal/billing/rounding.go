package billing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Strategy задаёт способ округления суммы до шага RoundTo.
type Strategy string

const (
	StrategyFloor Strategy = "floor"
	StrategyRound Strategy = "round"
	StrategyCeil  Strategy = "ceil"
)

// ParseStrategy разбирает название стратегии. Пустая строка означает ceil.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case "", StrategyCeil:
		return StrategyCeil, nil
	case StrategyFloor:
		return StrategyFloor, nil
	case StrategyRound:
		return StrategyRound, nil
	default:
		return "", fmt.Errorf("unknown rounding strategy %q", s)
	}
}

// Round округляет сумму по настроенной политике.
// При RoundTo <= 0 сумма округляется до ближайшего целого.
func (e *Engine) Round(amount decimal.Decimal) int64 {
	return roundAmount(amount, e.cfg.RoundTo, e.cfg.Strategy)
}

func roundAmount(amount decimal.Decimal, roundTo int64, strategy Strategy) int64 {
	if roundTo <= 0 {
		return amount.Round(0).IntPart()
	}

	step := decimal.NewFromInt(roundTo)
	q := amount.Div(step)

	switch strategy {
	case StrategyFloor:
		q = q.Floor()
	case StrategyRound:
		q = q.Round(0)
	default:
		q = q.Ceil()
	}

	return q.Mul(step).IntPart()
}

package billing

import "time"

// MinutesBetween возвращает число полных минут между a и b с округлением вверх.
// Если b не позже a, результат равен нулю.
func MinutesBetween(a, b time.Time) int {
	d := b.Sub(a)
	if d <= 0 {
		return 0
	}

	minutes := d / time.Minute
	if d%time.Minute != 0 {
		minutes++
	}
	return int(minutes)
}

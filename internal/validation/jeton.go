// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

const jetonPrefix = "JET-"

// IsValidJetonCode проверяет формат кода жетона: JET-<буквы/цифры>-<буквы/цифры>
// либо от 6 до 20 латинских букв и цифр.
func IsValidJetonCode(code string) bool {
	if rest, ok := strings.CutPrefix(code, jetonPrefix); ok {
		series, number, found := strings.Cut(rest, "-")
		return found && isAlnum(series) && isAlnum(number)
	}

	return len(code) >= 6 && len(code) <= 20 && isAlnum(code)
}

func isAlnum(s string) bool {
	if s == "" {
		return false
	}

	for _, ch := range s {
		if ch > unicode.MaxASCII || !(unicode.IsLetter(ch) || unicode.IsDigit(ch)) {
			return false
		}
	}
	return true
}

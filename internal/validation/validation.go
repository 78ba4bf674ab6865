// Package validation содержит проверки форматов идентификаторов слотов и дат.
package validation

import (
	"regexp"
	"time"
)

var slotIDRe = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// IsValidSlotID проверяет, что строка является корректным идентификатором
// слота доставки в формате HH:MM.
func IsValidSlotID(s string) bool {
	return slotIDRe.MatchString(s)
}

// IsValidDate проверяет, что строка является корректной датой YYYY-MM-DD.
func IsValidDate(s string) bool {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == s
}

// Package schedule содержит арифметику дедлайнов слотов доставки.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// SlotMinutes разбирает идентификатор слота вида "HH:MM" в минуты с полуночи.
func SlotMinutes(slot string) (int, error) {
	parts := strings.Split(slot, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid slot %q", slot)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q: %w", slot, err)
	}

	if hours < 0 || hours > 23 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("slot %q out of range", slot)
	}

	return hours*60 + minutes, nil
}

// DeadlineMinutes возвращает дедлайн слота в минутах с полуночи: время слота
// минус leadMinutes, но не раньше полуночи.
func DeadlineMinutes(slot string, leadMinutes int) (int, error) {
	slotMin, err := SlotMinutes(slot)
	if err != nil {
		return 0, err
	}

	deadline := slotMin - leadMinutes
	if deadline < 0 {
		deadline = 0
	}
	return deadline, nil
}

// IsPast сообщает, прошёл ли дедлайн слота к моменту nowMinutes.
// Граница не включается: ровно в минуту дедлайна слот ещё открыт.
func IsPast(slot string, leadMinutes, nowMinutes int) (bool, error) {
	deadline, err := DeadlineMinutes(slot, leadMinutes)
	if err != nil {
		return false, err
	}
	return nowMinutes > deadline, nil
}

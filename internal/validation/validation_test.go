package validation

import "testing"

func TestIsValidSlotID(t *testing.T) {
	valid := []string{"00:00", "09:30", "13:00", "18:45", "23:59"}
	for _, s := range valid {
		if !IsValidSlotID(s) {
			t.Errorf("IsValidSlotID(%q) = false, want true", s)
		}
	}

	invalid := []string{"", "24:00", "13:60", "1300", "13", "13:0a", "7:5"}
	for _, s := range invalid {
		if IsValidSlotID(s) {
			t.Errorf("IsValidSlotID(%q) = true, want false", s)
		}
	}
}

func TestIsValidDate(t *testing.T) {
	if !IsValidDate("2026-02-10") {
		t.Errorf("IsValidDate(2026-02-10) = false, want true")
	}

	invalid := []string{"", "2026-13-01", "2026-02-30", "10.02.2026", "2026-2-1"}
	for _, s := range invalid {
		if IsValidDate(s) {
			t.Errorf("IsValidDate(%q) = true, want false", s)
		}
	}
}

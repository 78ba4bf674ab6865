package schedule

import "testing"

func TestSlotMinutes(t *testing.T) {
	tests := []struct {
		slot    string
		want    int
		wantErr bool
	}{
		{slot: "00:00", want: 0},
		{slot: "13:00", want: 780},
		{slot: "18:45", want: 1125},
		{slot: "23:59", want: 1439},
		{slot: "24:00", wantErr: true},
		{slot: "12:60", wantErr: true},
		{slot: "12", wantErr: true},
		{slot: "ab:cd", wantErr: true},
		{slot: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.slot, func(t *testing.T) {
			got, err := SlotMinutes(tt.slot)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("SlotMinutes(%q) expected error", tt.slot)
				}
				return
			}
			if err != nil {
				t.Fatalf("SlotMinutes(%q) error: %v", tt.slot, err)
			}
			if got != tt.want {
				t.Fatalf("SlotMinutes(%q) = %d, want %d", tt.slot, got, tt.want)
			}
		})
	}
}

func TestDeadlineMinutes(t *testing.T) {
	got, err := DeadlineMinutes("13:00", 150)
	if err != nil {
		t.Fatalf("DeadlineMinutes error: %v", err)
	}
	if got != 630 {
		t.Fatalf("DeadlineMinutes(13:00, 150) = %d, want 630", got)
	}
}

func TestDeadlineMinutes_ClampedToMidnight(t *testing.T) {
	got, err := DeadlineMinutes("01:00", 150)
	if err != nil {
		t.Fatalf("DeadlineMinutes error: %v", err)
	}
	if got != 0 {
		t.Fatalf("DeadlineMinutes(01:00, 150) = %d, want 0", got)
	}
}

func TestIsPast_Boundary(t *testing.T) {
	// Слот 13:00 с упреждением 150 минут: дедлайн 10:30 (630 минут).
	tests := []struct {
		nowMinutes int
		want       bool
	}{
		{nowMinutes: 629, want: false},
		{nowMinutes: 630, want: false},
		{nowMinutes: 631, want: true},
	}

	for _, tt := range tests {
		got, err := IsPast("13:00", 150, tt.nowMinutes)
		if err != nil {
			t.Fatalf("IsPast error: %v", err)
		}
		if got != tt.want {
			t.Fatalf("IsPast(13:00, 150, %d) = %v, want %v", tt.nowMinutes, got, tt.want)
		}
	}
}

func TestIsPast_InvalidSlot(t *testing.T) {
	if _, err := IsPast("25:00", 150, 0); err == nil {
		t.Fatalf("expected error for invalid slot")
	}
}

package sirens

import (
	"testing"
	"time"
)

func TestStatePatchApply(t *testing.T) {
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)
	t2 := t0.Add(2 * time.Second)
	on := true

	tests := []struct {
		name        string
		cur         Siren
		patch       StatePatch
		wantOK      bool
		wantStatus  Status
		wantPlaying bool
		wantChecked time.Time
	}{
		{
			name:        "first write",
			cur:         Siren{Status: StatusInactive},
			patch:       StatePatch{Status: StatusActive, LastChecked: t1},
			wantOK:      true,
			wantStatus:  StatusActive,
			wantChecked: t1,
		},
		{
			name:        "older status write is dropped",
			cur:         Siren{Status: StatusInactive, StatusChangedAt: &t2, LastChecked: t2},
			patch:       StatePatch{Status: StatusActive, LastChecked: t1},
			wantStatus:  StatusInactive,
			wantChecked: t2,
		},
		{
			name:        "older playing write still lands when status is newer",
			cur:         Siren{Status: StatusActive, StatusChangedAt: &t2, LastChecked: t2},
			patch:       StatePatch{Playing: &on, LastChecked: t1},
			wantOK:      true,
			wantStatus:  StatusActive,
			wantPlaying: true,
			wantChecked: t2,
		},
		{
			name:        "equal stamp applies",
			cur:         Siren{Status: StatusInactive, StatusChangedAt: &t1, LastChecked: t1},
			patch:       StatePatch{Status: StatusActive, LastChecked: t1},
			wantOK:      true,
			wantStatus:  StatusActive,
			wantChecked: t1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := tt.patch.Apply(tt.cur)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if next.Status != tt.wantStatus || next.Playing != tt.wantPlaying {
				t.Errorf("got status %s playing %v", next.Status, next.Playing)
			}
			if !next.LastChecked.Equal(tt.wantChecked) {
				t.Errorf("lastChecked = %v, want %v", next.LastChecked, tt.wantChecked)
			}
		})
	}
}

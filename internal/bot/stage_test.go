package bot

import (
	"testing"

	"dcabot/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"flat to open", models.StageFlat, models.StageOpen, true},
		{"open to post tp1", models.StageOpen, models.StagePostTP1, true},
		{"open to flat on full close", models.StageOpen, models.StageFlat, true},
		{"post tp1 to post tp2", models.StagePostTP1, models.StagePostTP2, true},
		{"post tp1 to flat on trail", models.StagePostTP1, models.StageFlat, true},
		{"post tp2 to flat", models.StagePostTP2, models.StageFlat, true},
		{"flat to post tp1 skips open", models.StageFlat, models.StagePostTP1, false},
		{"post tp2 back to open", models.StagePostTP2, models.StageOpen, false},
		{"flat to flat", models.StageFlat, models.StageFlat, false},
		{"unknown stage", "BOGUS", models.StageOpen, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, ожидалось %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestHasOpenPosition(t *testing.T) {
	if HasOpenPosition(models.StageFlat) {
		t.Error("FLAT не должен считаться открытой позицией")
	}
	for _, s := range []string{models.StageOpen, models.StagePostTP1, models.StagePostTP2} {
		if !HasOpenPosition(s) {
			t.Errorf("этап %s должен считаться открытой позицией", s)
		}
	}
}

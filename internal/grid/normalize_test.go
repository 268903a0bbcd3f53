package grid

import (
	"testing"

	"branchbooker/internal/models"
)

func TestNormalizeEmptyWeek(t *testing.T) {
	hours, bands := Normalize(models.WeekAvailability{})

	if hours.StartHour != 9 || hours.EndHour != 17 {
		t.Fatalf("default range = (%d,%d), want (9,17)", hours.StartHour, hours.EndHour)
	}
	if len(bands) != 0 {
		t.Fatalf("expected no bands, got %d", len(bands))
	}
}

func TestNormalizeDaysWithEmptyLists(t *testing.T) {
	week := models.WeekAvailability{
		"2026-08-24": {},
		"2026-08-25": {},
	}

	hours, bands := Normalize(week)
	if hours.StartHour != 9 || hours.EndHour != 17 {
		t.Fatalf("range = (%d,%d), want (9,17)", hours.StartHour, hours.EndHour)
	}
	if len(bands) != 0 {
		t.Fatalf("empty days must contribute no bands, got %d", len(bands))
	}
}

func TestNormalizeSingleDay(t *testing.T) {
	// Slots only on Wednesday from 10:15 to 11:45.
	week := models.WeekAvailability{
		"2026-08-26": {
			{Start: 615, End: 660, Status: models.SlotAvailable},
			{Start: 660, End: 705, Status: models.SlotFullyBooked},
		},
	}

	hours, bands := Normalize(week)
	if hours.StartHour != 10 || hours.EndHour != 12 {
		t.Fatalf("range = (%d,%d), want (10,12)", hours.StartHour, hours.EndHour)
	}

	band, ok := bands["2026-08-26"]
	if !ok {
		t.Fatal("missing band for 2026-08-26")
	}
	if band.Min != 615 || band.Max != 705 {
		t.Fatalf("band = (%d,%d), want (615,705)", band.Min, band.Max)
	}
}

func TestNormalizeSharedAxisAcrossDays(t *testing.T) {
	week := models.WeekAvailability{
		"2026-08-24": {{Start: 480, End: 540, Status: models.SlotAvailable}},  // 08:00-09:00
		"2026-08-28": {{Start: 990, End: 1050, Status: models.SlotAvailable}}, // 16:30-17:30
	}

	hours, bands := Normalize(week)
	if hours.StartHour != 8 || hours.EndHour != 18 {
		t.Fatalf("range = (%d,%d), want (8,18)", hours.StartHour, hours.EndHour)
	}

	// Bands stay per-day and unrounded.
	if b := bands["2026-08-24"]; b.Min != 480 || b.Max != 540 {
		t.Fatalf("monday band = (%d,%d)", b.Min, b.Max)
	}
	if b := bands["2026-08-28"]; b.Min != 990 || b.Max != 1050 {
		t.Fatalf("friday band = (%d,%d)", b.Min, b.Max)
	}
	if len(bands) != 2 {
		t.Fatalf("expected 2 bands, got %d", len(bands))
	}
}

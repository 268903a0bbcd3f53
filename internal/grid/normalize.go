package grid

import (
	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
)

// Default visible range when the week holds no slots at all.
const (
	DefaultStartHour = 9
	DefaultEndHour   = 17
)

// HourRange is the vertical extent of the rendered grid in whole hours,
// [StartHour, EndHour).
type HourRange struct {
	StartHour int
	EndHour   int
}

// Band is one day's occupied time interval, unrounded. Used for
// background shading only.
type Band struct {
	Min timeutil.Minutes
	Max timeutil.Minutes
}

// Normalize computes the shared visible hour range and the per-day bands
// for a week of availability data.
//
// The range is the smallest hour-aligned span covering every slot in the
// week, so all seven columns share one vertical axis and no slot is
// clipped. Bands are per day and unrounded; a day without slots gets no
// band entry.
func Normalize(week models.WeekAvailability) (HourRange, map[string]Band) {
	bands := make(map[string]Band)

	var (
		weekMin timeutil.Minutes
		weekMax timeutil.Minutes
		seen    bool
	)

	for date, slots := range week {
		if len(slots) == 0 {
			continue
		}

		dayMin := slots[0].Start
		dayMax := slots[0].End
		for _, s := range slots[1:] {
			if s.Start < dayMin {
				dayMin = s.Start
			}
			if s.End > dayMax {
				dayMax = s.End
			}
		}
		bands[date] = Band{Min: dayMin, Max: dayMax}

		if !seen || dayMin < weekMin {
			weekMin = dayMin
		}
		if !seen || dayMax > weekMax {
			weekMax = dayMax
		}
		seen = true
	}

	if !seen {
		return HourRange{StartHour: DefaultStartHour, EndHour: DefaultEndHour}, bands
	}

	return HourRange{
		StartHour: int(timeutil.FloorToHour(weekMin)) / 60,
		EndHour:   int(timeutil.CeilToHour(weekMax)) / 60,
	}, bands
}

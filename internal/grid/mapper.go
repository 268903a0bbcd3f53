package grid

import (
	"fmt"

	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
)

// DefaultSlotMinutes is the fixed booking-grid granularity, independent
// of any branch-configured timeslot length used upstream.
const DefaultSlotMinutes = 15

var ErrOutOfRange = fmt.Errorf("time outside visible hour range")

// RowIndex maps a time of day to a zero-based grid row for the given
// visible start hour and slot granularity.
func RowIndex(t timeutil.Minutes, startHour, slotMinutes int) int {
	return (int(t) - startHour*60) / slotMinutes
}

// RowCount is the total number of rows in the grid, never less than 1.
func RowCount(r HourRange, slotMinutes int) int {
	total := (r.EndHour - r.StartHour) * 60
	n := (total + slotMinutes - 1) / slotMinutes
	if n < 1 {
		return 1
	}
	return n
}

// SlotSpan computes a slot's vertical extent as the half-open row range
// [startRow, endRow). A slot lying outside the visible range is a
// contract violation by the upstream data source and is reported rather
// than rendered as a negative-height block.
func SlotSpan(s models.Timeslot, r HourRange, slotMinutes int) (startRow, endRow int, err error) {
	const op = "grid.SlotSpan"

	if s.Start < timeutil.Minutes(r.StartHour*60) || s.End > timeutil.Minutes(r.EndHour*60) {
		return 0, 0, fmt.Errorf("%s: slot %s-%s outside %02d:00-%02d:00: %w",
			op, s.Start, s.End, r.StartHour, r.EndHour, ErrOutOfRange)
	}

	startRow = RowIndex(s.Start, r.StartHour, slotMinutes)
	endRow = RowIndex(s.End, r.StartHour, slotMinutes)
	if endRow <= startRow {
		// start < end plus granularity-aligned boundaries guarantee a
		// non-empty span; anything else is upstream data we refuse.
		return 0, 0, fmt.Errorf("%s: slot %s-%s spans no rows: %w", op, s.Start, s.End, ErrOutOfRange)
	}

	return startRow, endRow, nil
}

package grid

import (
	"fmt"
	"time"

	"branchbooker/internal/models"
	"branchbooker/internal/timeutil"
)

type CellState string

const (
	CellPast        CellState = "PAST"
	CellFullyBooked CellState = "FULLY_BOOKED"
	CellAvailable   CellState = "AVAILABLE"
)

const (
	TooltipPast        = "Unavailable"
	TooltipFullyBooked = "Fully booked"
	TooltipAvailable   = "Available — click to book"
)

// SlotCell is one rendered slot block inside a day column.
type SlotCell struct {
	Slot       models.Timeslot
	StartRow   int
	EndRow     int // exclusive
	State      CellState
	Selectable bool
	Tooltip    string
	Label      string // "HH:mm - HH:mm"
}

// DayColumn is one of the seven columns of the week grid.
type DayColumn struct {
	Date  string
	Past  bool
	Cells []SlotCell

	// Shaded background rows derived from the day band, [ShadeStartRow,
	// ShadeEndRow). Both -1 when the day has no slots.
	ShadeStartRow int
	ShadeEndRow   int
}

// HourLabel marks a row that starts a new hour on the time axis.
type HourLabel struct {
	Row   int
	Label string // "HH:00"
}

// WeekModel is the complete renderable structure for one week.
type WeekModel struct {
	Window      models.WeekWindow
	Hours       HourRange
	SlotMinutes int
	Rows        int
	HourLabels  []HourLabel
	Days        [7]DayColumn
}

// BuildWeek assembles the week grid model: shared hour axis, per-day
// shading bands, and classified slot cells. Days with no slots render as
// empty columns.
//
// Past-day detection compares calendar dates at midnight in now's
// location; the upstream server's timezone is not consulted, so boundary
// behavior across zones follows whatever the deployment clock says.
func BuildWeek(win models.WeekWindow, data models.WeekAvailability, slotMinutes int, now time.Time) (*WeekModel, error) {
	const op = "grid.BuildWeek"

	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}

	if err := models.ValidateWeek(data); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hours, bands := Normalize(data)

	m := &WeekModel{
		Window:      win,
		Hours:       hours,
		SlotMinutes: slotMinutes,
		Rows:        RowCount(hours, slotMinutes),
	}

	for h := hours.StartHour; h < hours.EndHour; h++ {
		m.HourLabels = append(m.HourLabels, HourLabel{
			Row:   RowIndex(timeutil.Minutes(h*60), hours.StartHour, slotMinutes),
			Label: fmt.Sprintf("%02d:00", h),
		})
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for i, day := range win.Days {
		date := day.Format(models.ISODate)
		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, now.Location())
		past := dayStart.Before(today)

		col := DayColumn{
			Date:          date,
			Past:          past,
			ShadeStartRow: -1,
			ShadeEndRow:   -1,
		}

		if band, ok := bands[date]; ok {
			col.ShadeStartRow = RowIndex(timeutil.FloorToHour(band.Min), hours.StartHour, slotMinutes)
			col.ShadeEndRow = RowIndex(timeutil.CeilToHour(band.Max), hours.StartHour, slotMinutes)
		}

		for _, slot := range data.Slots(date) {
			startRow, endRow, err := SlotSpan(slot, hours, slotMinutes)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", op, date, err)
			}

			cell := SlotCell{
				Slot:     slot,
				StartRow: startRow,
				EndRow:   endRow,
				Label:    fmt.Sprintf("%s - %s", slot.Start, slot.End),
			}

			switch {
			case past:
				cell.State = CellPast
				cell.Tooltip = TooltipPast
			case slot.Status == models.SlotFullyBooked:
				cell.State = CellFullyBooked
				cell.Tooltip = TooltipFullyBooked
			default:
				cell.State = CellAvailable
				cell.Selectable = true
				cell.Tooltip = TooltipAvailable
			}

			col.Cells = append(col.Cells, cell)
		}

		m.Days[i] = col
	}

	return m, nil
}

// Find returns the cell for the given date and start/end times, if the
// model currently renders it.
func (m *WeekModel) Find(date string, start, end timeutil.Minutes) (SlotCell, bool) {
	for _, col := range m.Days {
		if col.Date != date {
			continue
		}
		for _, cell := range col.Cells {
			if cell.Slot.Start == start && cell.Slot.End == end {
				return cell, true
			}
		}
	}
	return SlotCell{}, false
}

package api

import "time"

type Branch struct {
	BranchID        int64   `json:"branch_id"`
	Name            string  `json:"name"`
	FriendlyAddress string  `json:"friendly_address"`
	City            string  `json:"city"`
	Province        string  `json:"province"`
	Country         string  `json:"country"`
	PostalCode      string  `json:"postal_code"`
	Suburb          string  `json:"suburb"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
}

// SlotCell is one rendered slot inside a day column. Rows are indices
// into the shared hour axis; start/end are "HH:mm".
type SlotCell struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	Label      string `json:"label"`
	StartRow   int    `json:"start_row"`
	EndRow     int    `json:"end_row"`
	State      string `json:"state"`
	Selectable bool   `json:"selectable"`
	Tooltip    string `json:"tooltip"`
}

type DayColumn struct {
	Date          string     `json:"date"`
	Past          bool       `json:"past"`
	ShadeStartRow int        `json:"shade_start_row"`
	ShadeEndRow   int        `json:"shade_end_row"`
	Cells         []SlotCell `json:"cells"`
}

type HourLabel struct {
	Row   int    `json:"row"`
	Label string `json:"label"`
}

// WeekGrid is the full Monday..Sunday grid for one branch week.
type WeekGrid struct {
	WeekStart   string       `json:"week_start"`
	WeekEnd     string       `json:"week_end"`
	StartHour   int          `json:"start_hour"`
	EndHour     int          `json:"end_hour"`
	SlotMinutes int          `json:"slot_minutes"`
	Rows        int          `json:"rows"`
	HourLabels  []HourLabel  `json:"hour_labels"`
	Days        [7]DayColumn `json:"days"`
}

type CreateSessionRequest struct {
	BranchID int64  `json:"branch_id"`
	Date     string `json:"date,omitempty"`
}

// Session mirrors one visitor's booking workflow state.
type Session struct {
	SessionID string     `json:"session_id"`
	BranchID  int64      `json:"branch_id"`
	WeekStart string     `json:"week_start"`
	State     string     `json:"state"`
	Selection *Selection `json:"selection,omitempty"`
	Grid      *WeekGrid  `json:"grid,omitempty"`
}

type Selection struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// WeekRequest moves the visible week: "next", "prev" or "set" with an
// explicit date.
type WeekRequest struct {
	Action string `json:"action"`
	Date   string `json:"date,omitempty"`
}

type SelectRequest struct {
	Date  string `json:"date"`
	Start string `json:"start"`
	End   string `json:"end"`
}

type SubmitRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type BranchSummary struct {
	BranchID  int64   `json:"branch_id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Booking is the confirmation view of an accepted appointment.
type Booking struct {
	AppointmentID int64         `json:"appointment_id"`
	Branch        BranchSummary `json:"branch"`
	Date          string        `json:"date"`
	Start         string        `json:"start"`
	End           string        `json:"end"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Status        string        `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// DayBooking is one row of the staff daily view.
type DayBooking struct {
	AppointmentID int64  `json:"appointment_id"`
	Date          string `json:"date"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

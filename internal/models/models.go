package models

import (
	"fmt"
	"time"

	"branchbooker/internal/timeutil"
)

const ISODate = "2006-01-02"

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "AVAILABLE"
	SlotFullyBooked SlotStatus = "FULLY_BOOKED"
)

// Timeslot is one bookable interval within a single day.
type Timeslot struct {
	Start  timeutil.Minutes
	End    timeutil.Minutes
	Status SlotStatus
}

func (t Timeslot) Valid() bool {
	return t.Start.Valid() && t.End.Valid() && t.Start < t.End
}

// WeekAvailability maps an ISO date ("yyyy-MM-dd") to that day's slots.
// A missing key means zero slots for the day.
type WeekAvailability map[string][]Timeslot

// Slots returns the slot list for an ISO date, nil when the day is empty.
func (w WeekAvailability) Slots(isoDate string) []Timeslot {
	return w[isoDate]
}

// WeekWindow is the Monday..Sunday range currently displayed.
type WeekWindow struct {
	Start time.Time
	Days  [7]time.Time
}

// NewWeekWindow derives the week containing anchor, starting on Monday.
func NewWeekWindow(anchor time.Time) WeekWindow {
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, anchor.Location())

	offset := int(anchor.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}

	var w WeekWindow
	w.Start = anchor.AddDate(0, 0, -offset)
	for i := range w.Days {
		w.Days[i] = w.Start.AddDate(0, 0, i)
	}

	return w
}

func (w WeekWindow) End() time.Time {
	return w.Days[6]
}

func (w WeekWindow) StartISO() string {
	return w.Start.Format(ISODate)
}

func (w WeekWindow) EndISO() string {
	return w.End().Format(ISODate)
}

// SlotSelection is the user's in-progress, unconfirmed slot choice.
type SlotSelection struct {
	Date string
	Slot Timeslot
}

// BookingDraft holds the contact fields entered for the current selection.
type BookingDraft struct {
	Name   string
	Email  string
	Phone  string
	Reason string
}

type BookingStatus string

const (
	BookingBooked    BookingStatus = "BOOKED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// BranchSummary is the branch metadata echoed on the confirmation view.
type BranchSummary struct {
	BranchID  int64
	Name      string
	Address   string
	Latitude  float64
	Longitude float64
}

// Branch is a bookable branch as the upstream directory reports it.
type Branch struct {
	BranchID        int64
	Name            string
	FriendlyAddress string
	City            string
	Country         string
	Province        string
	PostalCode      string
	Suburb          string
	Latitude        float64
	Longitude       float64
}

func (b Branch) Summary() BranchSummary {
	return BranchSummary{
		BranchID:  b.BranchID,
		Name:      b.Name,
		Address:   b.FriendlyAddress,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
	}
}

// AppointmentRequest is the create-appointment payload sent upstream.
type AppointmentRequest struct {
	BranchID       int64
	Date           string
	Start          timeutil.Minutes
	End            timeutil.Minutes
	Name           string
	Email          string
	Phone          string
	Reason         string
	IdempotencyKey string
}

// ConfirmedBooking is a server-assigned booking plus the echoed fields
// shown on the confirmation view. Immutable once created; the status may
// flip to cancelled but nothing else changes.
type ConfirmedBooking struct {
	AppointmentID int64
	Branch        BranchSummary
	Date          string
	Start         timeutil.Minutes
	End           timeutil.Minutes
	Email         string
	Phone         string
	Reason        string
	Status        BookingStatus
	CreatedAt     time.Time
}

// DayBooking is one row of the staff daily-bookings view.
type DayBooking struct {
	AppointmentID int64
	Date          string
	Start         timeutil.Minutes
	End           timeutil.Minutes
	Email         string
	Phone         string
	Reason        string
}

// ValidateWeek rejects availability data that violates the slot invariant.
func ValidateWeek(w WeekAvailability) error {
	for date, slots := range w {
		for _, s := range slots {
			if !s.Valid() {
				return fmt.Errorf("models.ValidateWeek: %s: slot %s-%s violates start < end", date, s.Start, s.End)
			}
		}
	}
	return nil
}

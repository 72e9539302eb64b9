package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecurrenceRequest asks for one slot per matching weekday inside an
// inclusive date range.  It is consumed once and never persisted.
//
// Fields:
//  FacilityID       – terrain receiving the slots.
//  Weekday          – day of week to generate on.
//  StartTime        – local time of day, "HH:MM".
//  DurationMinutes  – slot length, strictly positive.
//  From, To         – inclusive calendar date range (time of day ignored).
//  Price            – price applied to every generated slot.
//  ManualBookerName – walk-in name used when AutoBook is set.
//  AutoBook         – create a PENDING walk-in reservation per slot.
type RecurrenceRequest struct {
	FacilityID       uint64
	Weekday          time.Weekday
	StartTime        string
	DurationMinutes  int
	From             time.Time
	To               time.Time
	Price            decimal.Decimal
	ManualBookerName string
	AutoBook         bool
}

package model

import (
	"sync"
	"time"
)

// Facility describes a bookable terrain (pitch, court) that belongs to a
// club.  Facilities are owned by the club/terrain metadata service; the
// scheduling core only reads them to validate references and to learn the
// time zone in which slot times are expressed.
//
// Fields:
//  ID       – primary key identifier.
//  ClubID   – owning club reference.
//  Name     – display name of the terrain.
//  Sport    – surface or sport tag (e.g. "padel", "football5").
//  Timezone – IANA zone name; slot wall-clock times are local to it.
type Facility struct {
	ID       uint64 `json:"id" db:"id"`             // facilities.id
	ClubID   uint64 `json:"club_id" db:"club_id"`   // facilities.club_id
	Name     string `json:"name" db:"name"`         // facilities.name
	Sport    string `json:"sport" db:"sport"`       // facilities.sport
	Timezone string `json:"timezone" db:"timezone"` // facilities.timezone
}

// locations caches resolved zones by name; time.LoadLocation reads and
// parses zoneinfo on every call.
var locations sync.Map // string -> *time.Location

// Location resolves the facility time zone.  An empty or unknown zone name
// falls back to UTC so that a misconfigured facility still compares times
// in a single frame.
func (f Facility) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	if loc, ok := locations.Load(f.Timezone); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		loc = time.UTC
	}
	actual, _ := locations.LoadOrStore(f.Timezone, loc)
	return actual.(*time.Location)
}

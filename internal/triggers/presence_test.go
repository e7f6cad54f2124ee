package triggers

import (
	"testing"
	"time"
)

func at(hour, minute int, weekday time.Weekday) time.Time {
	base := time.Date(2026, time.August, 3, hour, minute, 0, 0, time.UTC) // a Monday
	offset := int(weekday) - int(base.Weekday())
	return base.AddDate(0, 0, offset)
}

func TestDefaultPresenceScheduleAllowsDaytime(t *testing.T) {
	p := DefaultPresenceSchedule()
	if !p.IsAppropriateTime(at(12, 0, time.Wednesday)) {
		t.Error("expected noon to be within the default 08:00-23:00 window")
	}
	if p.IsAppropriateTime(at(3, 0, time.Wednesday)) {
		t.Error("expected 03:00 to fall outside the default window")
	}
}

func TestParsePresenceScheduleOvernightRange(t *testing.T) {
	p, err := ParsePresenceSchedule("22:00-06:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.IsAppropriateTime(at(23, 30, time.Friday)) {
		t.Error("expected 23:30 to be within an overnight 22:00-06:00 window")
	}
	if !p.IsAppropriateTime(at(1, 0, time.Friday)) {
		t.Error("expected 01:00 to be within an overnight 22:00-06:00 window")
	}
	if p.IsAppropriateTime(at(12, 0, time.Friday)) {
		t.Error("expected noon to fall outside an overnight window")
	}
}

func TestParsePresenceScheduleWithDayList(t *testing.T) {
	p, err := ParsePresenceSchedule("mon,tue,wed 09:00-17:00")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !p.IsAppropriateTime(at(10, 0, time.Tuesday)) {
		t.Error("expected Tuesday 10:00 to be active")
	}
	if p.IsAppropriateTime(at(10, 0, time.Saturday)) {
		t.Error("expected Saturday to be excluded by the day list")
	}
}

func TestParsePresenceScheduleRejectsGarbage(t *testing.T) {
	if _, err := ParsePresenceSchedule("not a schedule"); err == nil {
		t.Error("expected an error for a malformed schedule string")
	}
	if _, err := ParsePresenceSchedule("mon,xyz 09:00-17:00"); err == nil {
		t.Error("expected an error for an unknown weekday")
	}
}

func TestParsePresenceScheduleEmptyIsDefault(t *testing.T) {
	p, err := ParsePresenceSchedule("")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.ActiveStart != DefaultPresenceSchedule().ActiveStart {
		t.Error("expected empty schedule string to fall back to the default")
	}
}

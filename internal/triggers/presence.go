package triggers

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PresenceSchedule filters proactive triggers by time of day and day of
// week, grounded on mneme_expression::presence::PresenceScheduler.
type PresenceSchedule struct {
	ActiveStart time.Duration // offset from midnight
	ActiveEnd   time.Duration
	ActiveDays  map[time.Weekday]bool
}

// DefaultPresenceSchedule mirrors PresenceScheduler::new(): 08:00-23:00,
// every day.
func DefaultPresenceSchedule() PresenceSchedule {
	return PresenceSchedule{
		ActiveStart: 8 * time.Hour,
		ActiveEnd:   23 * time.Hour,
		ActiveDays:  allDays(),
	}
}

func allDays() map[time.Weekday]bool {
	return map[time.Weekday]bool{
		time.Sunday: true, time.Monday: true, time.Tuesday: true,
		time.Wednesday: true, time.Thursday: true, time.Friday: true,
		time.Saturday: true,
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday,
	"wed": time.Wednesday, "thu": time.Thursday, "fri": time.Friday,
	"sat": time.Saturday,
}

// ParsePresenceSchedule reads config.Expression.PresenceSchedule. Accepted
// forms: "HH:MM-HH:MM" (every day) or "mon,tue,wed HH:MM-HH:MM" (a
// comma-separated three-letter day list followed by the same time range).
// An empty string returns DefaultPresenceSchedule.
func ParsePresenceSchedule(spec string) (PresenceSchedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return DefaultPresenceSchedule(), nil
	}

	fields := strings.Fields(spec)
	timeRange := fields[len(fields)-1]
	days := allDays()
	if len(fields) == 2 {
		days = map[time.Weekday]bool{}
		for _, d := range strings.Split(fields[0], ",") {
			wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(d))]
			if !ok {
				return PresenceSchedule{}, fmt.Errorf("triggers: unknown weekday %q in presence schedule %q", d, spec)
			}
			days[wd] = true
		}
	} else if len(fields) != 1 {
		return PresenceSchedule{}, fmt.Errorf("triggers: invalid presence schedule %q", spec)
	}

	parts := strings.SplitN(timeRange, "-", 2)
	if len(parts) != 2 {
		return PresenceSchedule{}, fmt.Errorf("triggers: invalid time range %q in presence schedule", timeRange)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return PresenceSchedule{}, err
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return PresenceSchedule{}, err
	}
	return PresenceSchedule{ActiveStart: start, ActiveEnd: end, ActiveDays: days}, nil
}

func parseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	hm := strings.SplitN(s, ":", 2)
	if len(hm) != 2 {
		return 0, fmt.Errorf("triggers: invalid clock time %q", s)
	}
	h, err := strconv.Atoi(hm[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("triggers: invalid hour in %q", s)
	}
	m, err := strconv.Atoi(hm[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("triggers: invalid minute in %q", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// IsAppropriateTime reports whether now falls within the active window,
// handling overnight ranges (e.g. 22:00-06:00) the same way
// PresenceScheduler::is_appropriate_time does.
func (p PresenceSchedule) IsAppropriateTime(now time.Time) bool {
	if len(p.ActiveDays) > 0 && !p.ActiveDays[now.Weekday()] {
		return false
	}
	clock := time.Duration(now.Hour())*time.Hour + time.Duration(now.Minute())*time.Minute + time.Duration(now.Second())*time.Second
	if p.ActiveStart <= p.ActiveEnd {
		return clock >= p.ActiveStart && clock <= p.ActiveEnd
	}
	return clock >= p.ActiveStart || clock <= p.ActiveEnd
}

// Package availability answers whether a technician is inside their working
// hours at a given instant.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// Window is one day's availability in minutes since midnight.
// From greater than To describes a shift that crosses midnight.
type Window struct {
	Enabled bool
	From    int
	To      int
}

// Schedule holds one Window per weekday, indexed by time.Weekday.
type Schedule struct {
	Days [7]Window
}

var (
	defaultWeekday = Window{Enabled: true, From: 9 * 60, To: 18 * 60}
	defaultWeekend = Window{Enabled: false, From: 9 * 60, To: 18 * 60}
)

// Default is Monday to Friday 09:00-18:00 with the weekend off.
func Default() Schedule {
	var s Schedule
	for d := time.Sunday; d <= time.Saturday; d++ {
		s.Days[d] = defaultFor(d)
	}
	return s
}

func defaultFor(d time.Weekday) Window {
	if d == time.Saturday || d == time.Sunday {
		return defaultWeekend
	}
	return defaultWeekday
}

// Contains reports whether minute m of the day lies in w. Both bounds are inclusive.
func (w Window) Contains(m int) bool {
	if !w.Enabled {
		return false
	}
	if w.From <= w.To {
		return m >= w.From && m <= w.To
	}
	return m >= w.From || m <= w.To
}

// IsWithin evaluates at in loc. A nil loc means UTC.
func (s Schedule) IsWithin(at time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := at.In(loc)
	return s.Days[local.Weekday()].Contains(local.Hour()*60 + local.Minute())
}

func (s Schedule) String() string {
	var b strings.Builder
	for d := time.Monday; ; d = (d + 1) % 7 {
		w := s.Days[d]
		if b.Len() > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.String()[:3])
		if w.Enabled {
			fmt.Fprintf(&b, " %s-%s", FormatHHMM(w.From), FormatHHMM(w.To))
		} else {
			b.WriteString(" off")
		}
		if d == time.Sunday {
			break
		}
	}
	return b.String()
}

// ParseHHMM reads "H:MM" or "HH:MM". "24:00" is accepted as end of day.
func ParseHHMM(v string) (int, bool) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(v), ":")
	if !ok {
		return 0, false
	}
	return minutesOf(hh, mm)
}

func minutesOf(hh, mm string) (int, bool) {
	h, err := strconv.Atoi(hh)
	if err != nil || len(hh) > 2 {
		return 0, false
	}
	m := 0
	if mm != "" {
		if len(mm) != 2 {
			return 0, false
		}
		if m, err = strconv.Atoi(mm); err != nil {
			return 0, false
		}
	}
	switch {
	case h == 24 && m == 0:
		return minutesPerDay, true
	case h < 0 || h > 23 || m < 0 || m > 59:
		return 0, false
	}
	return h*60 + m, true
}

func FormatHHMM(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

package availability

import (
	"encoding/json"
	"errors"
	"time"

	"servitec_backend/platform/sanitize"
)

// DayConfig is the stored shape of one day.
type DayConfig struct {
	Day     string `json:"day,omitempty"`
	Enabled *bool  `json:"enabled"`
	From    string `json:"from"`
	To      string `json:"to"`
}

var errEmptyConfig = errors.New("empty working hours configuration")

var dayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "domingo": time.Sunday, "dom": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "lunes": time.Monday, "lun": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "martes": time.Tuesday, "mar": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "miercoles": time.Wednesday, "mie": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "jueves": time.Thursday, "jue": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "viernes": time.Friday, "vie": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sabado": time.Saturday, "sab": time.Saturday, "sat": time.Saturday,
}

func lookupDay(name string) (time.Weekday, bool) {
	d, ok := dayNames[sanitize.Fold(name)]
	return d, ok
}

// ParseStructured reads either an object keyed by day name or a list of
// DayConfig entries carrying a day field. Days that are missing or carry
// invalid values keep their default window.
func ParseStructured(raw []byte) (Schedule, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Default(), errEmptyConfig
	}

	entries := make(map[time.Weekday]DayConfig)

	var keyed map[string]DayConfig
	if err := json.Unmarshal(raw, &keyed); err == nil {
		for name, cfg := range keyed {
			if d, ok := lookupDay(name); ok {
				entries[d] = cfg
			}
		}
	} else {
		var list []DayConfig
		if err := json.Unmarshal(raw, &list); err != nil {
			return Default(), err
		}
		for _, cfg := range list {
			if d, ok := lookupDay(cfg.Day); ok {
				entries[d] = cfg
			}
		}
	}

	if len(entries) == 0 {
		return Default(), errEmptyConfig
	}

	s := Default()
	for d, cfg := range entries {
		if w, ok := cfg.window(); ok {
			s.Days[d] = w
		}
	}
	return s, nil
}

func (c DayConfig) window() (Window, bool) {
	if c.Enabled == nil {
		return Window{}, false
	}
	if !*c.Enabled {
		return Window{Enabled: false}, true
	}
	from, okFrom := ParseHHMM(c.From)
	to, okTo := ParseHHMM(c.To)
	if !okFrom || !okTo || from == to {
		return Window{}, false
	}
	return Window{Enabled: true, From: from, To: to}, true
}

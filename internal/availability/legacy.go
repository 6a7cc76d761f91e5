package availability

import (
	"regexp"
	"time"

	"servitec_backend/platform/sanitize"
)

const dayPattern = `(lunes|lun|martes|mar|miercoles|mie|jueves|jue|viernes|vie|sabados?|sab|domingos?|dom)`

// Matches "lun a vie 9:00 a 18:00", "sab 9 a 13hs", "martes: 8.30 - 12" once accents are folded.
var legacySegment = regexp.MustCompile(
	`\b` + dayPattern + `\.?` +
		`(?:\s*(?:a|al|-|hasta)\s*` + dayPattern + `\.?)?` +
		`\s*:?\s*(?:de\s+)?(\d{1,2})(?:[:.h](\d{2}))?\s*(?:hrs?|hs|h)?\.?` +
		`\s*(?:a|al|-|hasta)\s*` +
		`(\d{1,2})(?:[:.h](\d{2}))?`,
)

var legacyDays = map[string]time.Weekday{
	"lun": time.Monday, "mar": time.Tuesday, "mie": time.Wednesday, "jue": time.Thursday,
	"vie": time.Friday, "sab": time.Saturday, "dom": time.Sunday,
}

// ParseLegacy extracts day-labelled ranges from free Spanish text. When at
// least one range is recognised, days not mentioned are off. When nothing is
// recognised the default schedule is returned with ok false.
func ParseLegacy(text string) (Schedule, bool) {
	folded := sanitize.Fold(text)
	found := legacySegment.FindAllStringSubmatch(folded, -1)

	var s Schedule
	parsed := false
	for _, m := range found {
		first, ok := legacyDays[m[1][:3]]
		if !ok {
			continue
		}
		last := first
		if m[2] != "" {
			if last, ok = legacyDays[m[2][:3]]; !ok {
				continue
			}
		}
		from, okFrom := minutesOf(m[3], m[4])
		to, okTo := minutesOf(m[5], m[6])
		if !okFrom || !okTo || from == to {
			continue
		}
		w := Window{Enabled: true, From: from, To: to}
		for d := first; ; d = (d + 1) % 7 {
			s.Days[d] = w
			if d == last {
				break
			}
		}
		parsed = true
	}

	if !parsed {
		return Default(), false
	}
	return s, true
}

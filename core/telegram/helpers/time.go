package helpers

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts accepts ISO and dotted day-first dates, each with an optional
// HH:MM suffix.
var dateLayouts = []string{
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseFlexibleDate parses input in loc (time.Local when nil) using the
// first layout that fits.
func ParseFlexibleDate(input string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.Join(strings.Fields(input), " ")
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q, want YYYY-MM-DD or DD.MM.YYYY with optional HH:MM", input)
}

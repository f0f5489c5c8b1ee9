package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"telegram-channel-publisher/internal/domain"
)

// Both the time prompt and quick schedule accept the same clock forms.
const (
	hourPattern   = `(?:[01]?\d|2[0-3])`
	minutePattern = `[0-5]\d`
)

var clockRe = regexp.MustCompile(`^(` + hourPattern + `):(` + minutePattern + `)$`)

// quickScheduleRe matches "HH:MM" on the first line followed by the post body.
var quickScheduleRe = regexp.MustCompile(`(?s)^(` + hourPattern + `:` + minutePattern + `)[ \t]*\r?\n(.+)$`)

// ParseClock parses an "HH:MM" wall-clock time.
func ParseClock(s string) (hour, minute int, err error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: time %q is not HH:MM", domain.ErrValidation, s)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	return hour, minute, nil
}

// NextOccurrence combines now's date with hour:minute in now's location.
// When that instant is not after now, the result is exactly 24h later.
func NextOccurrence(now time.Time, hour, minute int) time.Time {
	at := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = at.Add(24 * time.Hour)
	}
	return at
}

// SplitQuickSchedule recognizes "HH:MM\n<text>" drafts.
func SplitQuickSchedule(msg string) (hour, minute int, text string, ok bool) {
	m := quickScheduleRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, 0, "", false
	}
	text = strings.TrimSpace(m[2])
	if text == "" {
		return 0, 0, "", false
	}
	hour, minute, err := ParseClock(m[1])
	if err != nil {
		return 0, 0, "", false
	}
	return hour, minute, text, true
}

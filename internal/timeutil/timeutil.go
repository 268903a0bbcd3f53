package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"branchbooker/pkg/response"
)

// Minutes is a wall-clock time as minutes since midnight, 0..1439.
type Minutes int

const MinutesPerDay = 1440

var hhmmRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// Parse converts "HH:mm" or "HH:mm:ss" to minutes since midnight.
// The seconds component, when present, is discarded.
func Parse(s string) (Minutes, error) {
	const op = "timeutil.Parse"

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("%s: %q: %w", op, s, response.ErrBadClock)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%s: %q: %w", op, s, response.ErrBadClock)
	}

	m, err := strconv.Atoi(parts[1])
	if err != nil || len(parts[1]) != 2 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%s: %q: %w", op, s, response.ErrBadClock)
	}

	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || len(parts[2]) != 2 || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("%s: %q: %w", op, s, response.ErrBadClock)
		}
	}

	return Minutes(h*60 + m), nil
}

func (m Minutes) Hour() int {
	return int(m) / 60
}

func (m Minutes) Minute() int {
	return int(m) % 60
}

// String renders the time as "HH:mm".
func (m Minutes) String() string {
	return fmt.Sprintf("%02d:%02d", m.Hour(), m.Minute())
}

func (m Minutes) Valid() bool {
	return m >= 0 && m < MinutesPerDay
}

// FloorToHour rounds down to the previous 60-minute boundary.
func FloorToHour(m Minutes) Minutes {
	return m - m%60
}

// CeilToHour rounds up to the next 60-minute boundary.
func CeilToHour(m Minutes) Minutes {
	if m%60 == 0 {
		return m
	}
	return FloorToHour(m) + 60
}

// IsValidHHMM reports whether s is a strict "HH:mm" clock string.
func IsValidHHMM(s string) bool {
	return hhmmRe.MatchString(s)
}

// TrimToHHMM cuts "HH:mm:ss" down to "HH:mm" for display.
func TrimToHHMM(s string) string {
	if len(s) < 5 {
		return ""
	}
	return s[:5]
}

package util

import (
	"errors"
	"fmt"
)

// ErrBadTimestamp is returned when a timestamp string cannot be parsed.
var ErrBadTimestamp = errors.New("bad timestamp")

// Epoch magnitudes used to recognise millisecond and microsecond integers
// (13 and 16 digit exchange exports respectively).
const (
	millisThreshold = 1_000_000_000_000
	microsThreshold = 1_000_000_000_000_000
)

// IsLeapYear reports whether y is a leap year in the proleptic Gregorian
// calendar.
func IsLeapYear(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

// DaysInMonth returns the number of days in month m (1-12) of year y.
func DaysInMonth(y, m int) int {
	switch m {
	case 2:
		if IsLeapYear(y) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// DaysFromCivil returns the number of days between 1970-01-01 and the given
// civil date.
func DaysFromCivil(y, m, d int) int64 {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := int64(y - era*400)
	mp := int64((m + 9) % 12)
	doy := (153*mp+2)/5 + int64(d) - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return int64(era)*146097 + doe - 719468
}

// ParseEpoch parses an integer epoch in seconds, milliseconds or
// microseconds and returns seconds.
func ParseEpoch(s string) (int64, error) {
	if s == "" {
		return 0, ErrBadTimestamp
	}
	neg := false
	i := 0
	if s[0] == '-' {
		neg = true
		i = 1
		if len(s) == 1 {
			return 0, ErrBadTimestamp
		}
	}
	var v int64
	for ; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, ErrBadTimestamp
		}
		if v > (1<<62)/10 {
			return 0, fmt.Errorf("%w: %q overflows", ErrBadTimestamp, s)
		}
		v = v*10 + int64(c-'0')
	}
	switch {
	case v >= microsThreshold:
		v /= 1_000_000
	case v >= millisThreshold:
		v /= 1_000
	}
	if neg {
		v = -v
	}
	return v, nil
}

// ParseCalendar parses YYYY-MM-DD, YYYY-MM-DDTHH:MM:SS or
// YYYY-MM-DDTHH:MM:SSZ (always UTC) into epoch seconds.
func ParseCalendar(s string) (int64, error) {
	n := len(s)
	if n != 10 && n != 19 && n != 20 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	if s[4] != '-' || s[7] != '-' {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	y, ok1 := digits(s[0:4])
	m, ok2 := digits(s[5:7])
	d, ok3 := digits(s[8:10])
	if !ok1 || !ok2 || !ok3 || m < 1 || m > 12 || d < 1 || d > DaysInMonth(y, m) {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}

	secs := DaysFromCivil(y, m, d) * 86400
	if n == 10 {
		return secs, nil
	}

	if s[10] != 'T' || s[13] != ':' || s[16] != ':' || (n == 20 && s[19] != 'Z') {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	hh, ok1 := digits(s[11:13])
	mm, ok2 := digits(s[14:16])
	ss, ok3 := digits(s[17:19])
	if !ok1 || !ok2 || !ok3 || hh > 23 || mm > 59 || ss > 59 {
		return 0, fmt.Errorf("%w: %q", ErrBadTimestamp, s)
	}
	return secs + int64(hh*3600+mm*60+ss), nil
}

// ParseTimestamp accepts either an integer epoch or a calendar string.
func ParseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, ErrBadTimestamp
	}
	if len(s) >= 5 && s[4] == '-' {
		return ParseCalendar(s)
	}
	return ParseEpoch(s)
}

func digits(s string) (int, bool) {
	v := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		v = v*10 + int(c-'0')
	}
	return v, true
}

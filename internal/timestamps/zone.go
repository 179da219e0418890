// Package timestamps owns the single time encoding used by the store and
// the reconciliation of rows written under the older local-offset encoding.
package timestamps

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"csbridge/internal/constants"
)

// Zone is a fixed reference offset. It never observes daylight saving.
type Zone struct {
	name   string
	offset time.Duration
	loc    *time.Location
}

// NewZone builds a fixed zone offsetHours east of UTC.
func NewZone(name string, offsetHours int) Zone {
	if name == "" {
		name = fmt.Sprintf("UTC%+d", offsetHours)
	}
	offset := time.Duration(offsetHours) * time.Hour
	return Zone{
		name:   name,
		offset: offset,
		loc:    time.FixedZone(name, int(offset/time.Second)),
	}
}

// DefaultZone is UTC+7 (WIB).
func DefaultZone() Zone {
	return NewZone(constants.DefaultTimezoneName, constants.DefaultTimezoneOffsetHours)
}

func (z Zone) Name() string             { return z.name }
func (z Zone) Offset() time.Duration    { return z.offset }
func (z Zone) Location() *time.Location { return z.location() }

func (z Zone) location() *time.Location {
	if z.loc == nil {
		return time.UTC
	}
	return z.loc
}

// In converts t to the zone's wall clock.
func (z Zone) In(t time.Time) time.Time {
	return t.In(z.location())
}

// Clock supplies the current instant. Tests substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns time.Now.
func SystemClock() Clock { return ClockFunc(time.Now) }

// FixedClock always returns t.
func FixedClock(t time.Time) Clock { return ClockFunc(func() time.Time { return t }) }

// FormatStorage renders t in the canonical storage encoding: UTC wall clock,
// second precision, no offset marker.
func FormatStorage(t time.Time) string {
	return t.UTC().Format(constants.StorageTimeLayout)
}

var utcLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z",
	"2006-01-02T15:04:05.999999999Z",
}

// ParseUTC reads raw as a UTC wall-clock string. It accepts the storage
// layout, a T separator, fractional seconds and a trailing Z.
func ParseUTC(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range utcLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q is not a UTC wall-clock string", raw)
}

// ParseLocal reads raw as a wall-clock string in zone and returns the
// matching UTC instant. It splits on '-', ' ', ':' and 'T' and needs at
// least six integer fields; anything after the sixth is ignored.
func ParseLocal(raw string, zone Zone) (time.Time, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(raw), func(r rune) bool {
		return r == '-' || r == ' ' || r == ':' || r == 'T'
	})
	if len(fields) < 6 {
		return time.Time{}, fmt.Errorf("timestamp %q has %d fields, need 6", raw, len(fields))
	}

	var p [6]int
	for i := range p {
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q field %d: %w", raw, i, err)
		}
		p[i] = n
	}

	year, month, day, hour, minute, second := p[0], p[1], p[2], p[3], p[4], p[5]
	if month < 1 || month > 12 || day < 1 || day > 31 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, fmt.Errorf("timestamp %q is out of range", raw)
	}

	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, zone.location())
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("timestamp %q names a day the month does not have", raw)
	}
	return t.UTC(), nil
}

// ParseStored reads a created_at column. Unparseable values yield nil so
// callers fall back to id ordering.
func ParseStored(raw string) *time.Time {
	t, err := ParseUTC(raw)
	if err != nil {
		return nil
	}
	return &t
}

// Display renders t for operators in the reference zone. Nil renders empty.
func Display(t *time.Time, zone Zone) string {
	if t == nil {
		return ""
	}
	return zone.In(*t).Format(constants.DisplayTimeLayout)
}

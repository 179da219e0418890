package timestamps

import (
	"time"
)

// Action is what reconciliation does with one stored value.
type Action int

const (
	// Keep leaves the row untouched.
	Keep Action = iota
	// ConvertFromLocal rewrites a local-offset value as canonical UTC.
	ConvertFromLocal
	// NormalizeUTC rewrites an already-UTC value into the canonical layout.
	NormalizeUTC
	// Review leaves the row untouched and flags it for an operator.
	Review
)

func (a Action) String() string {
	switch a {
	case Keep:
		return "keep"
	case ConvertFromLocal:
		return "convert_from_local"
	case NormalizeUTC:
		return "normalize_utc"
	case Review:
		return "review"
	default:
		return "unknown"
	}
}

const (
	ReasonUnparseable = "unparseable"
	ReasonFuture      = "future"
)

const (
	futureTolerance = time.Hour
	staleHorizon    = 365 * 24 * time.Hour
)

// Decision is the outcome of Decide for one raw value.
type Decision struct {
	Action Action
	// Value is the canonical replacement. Empty unless Action rewrites.
	Value  string
	Reason string
	UTC    *time.Time
	Local  *time.Time
}

// Rewrites reports whether the decision changes the stored value.
func (d Decision) Rewrites() bool {
	return d.Action == ConvertFromLocal || d.Action == NormalizeUTC
}

// Decide classifies raw relative to now. Rules are applied in order and the
// first one that matches wins; anything it cannot resolve is kept or flagged.
func Decide(raw string, now time.Time, zone Zone) Decision {
	var d Decision

	utc, utcErr := ParseUTC(raw)
	local, localErr := ParseLocal(raw, zone)
	utcOK, localOK := utcErr == nil, localErr == nil
	if utcOK {
		d.UTC = &utc
	}
	if localOK {
		d.Local = &local
	}

	if !utcOK && !localOK {
		d.Action = Review
		d.Reason = ReasonUnparseable
		return d
	}

	utcFuture := utcOK && utc.Sub(now) > futureTolerance

	if utcFuture && localOK && absDuration(local.Sub(now)) < absDuration(utc.Sub(now)) {
		d.Action = ConvertFromLocal
		d.Value = FormatStorage(local)
		return d
	}

	if localOK && utcOK && absDuration(local.Sub(now)) > staleHorizon && absDuration(utc.Sub(now)) <= staleHorizon {
		canonical := FormatStorage(utc)
		if canonical == raw {
			d.Action = Keep
			return d
		}
		d.Action = NormalizeUTC
		d.Value = canonical
		return d
	}

	if !utcOK && localOK {
		d.Action = ConvertFromLocal
		d.Value = FormatStorage(local)
		return d
	}

	if utcFuture {
		d.Action = Review
		d.Reason = ReasonFuture
		return d
	}

	d.Action = Keep
	return d
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

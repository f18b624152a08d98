// Package timefmt normalizes the timestamp encodings written by milling
// equipment into comparable instants, and renders instants for the order API.
//
// Artifacts are written in the equipment's local wall-clock time. The
// normalizer therefore parses every local-style string in a single configured
// location. Some encodings carry a numeric offset suffix that does not
// describe the value: it is stripped, never applied.
//
// One encoding (EncodingOffsetSuffixed) is transmitted with a fixed -9h
// correction. This is not a timezone conversion; it compensates for how that
// upstream format represents its values and must be applied exactly once, on
// the way out.
package timefmt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// WireLayout is the timestamp layout used by the order API.
const WireLayout = "2006-01-02 15:04:05"

// offsetSuffixShift is the correction applied to EncodingOffsetSuffixed values on transmission.
const offsetSuffixShift = -9 * time.Hour

// Encoding identifies how a source artifact wrote its timestamps.
type Encoding int

const (
	// EncodingLocal is a plain local wall-clock string with Y/M/D H:M:S fields.
	EncodingLocal Encoding = iota

	// EncodingOffsetSuffixed is an ISO-like local string with a spurious
	// offset suffix, e.g. "2025-07-08T16:49:56.1314638+09:00".
	EncodingOffsetSuffixed

	// EncodingEpoch is Unix epoch seconds.
	EncodingEpoch

	// EncodingFileTime is a filesystem modification time.
	EncodingFileTime
)

func (e Encoding) String() string {
	switch e {
	case EncodingLocal:
		return "local"
	case EncodingOffsetSuffixed:
		return "offset-suffixed"
	case EncodingEpoch:
		return "epoch"
	case EncodingFileTime:
		return "file-time"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// WireShift returns the fixed correction applied when a value of this
// encoding is transmitted. Only EncodingOffsetSuffixed is shifted.
func (e Encoding) WireShift() time.Duration {
	if e == EncodingOffsetSuffixed {
		return offsetSuffixShift
	}
	return 0
}

var (
	offsetSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)
	stampFields  = regexp.MustCompile(`\d+`)
)

// localLayouts are tried in order by ParseLocal. Fractional seconds are
// accepted by time.Parse after the seconds field even though the layouts
// do not mention them.
var localLayouts = []string{
	WireLayout,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseLocal parses a local wall-clock string in loc. Fractional seconds
// are truncated.
func ParseLocal(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.Truncate(time.Second), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized local timestamp %q", s)
}

// ParseOffsetSuffixed strips a trailing offset suffix ("+09:00", "-0500", "Z")
// and parses the remainder as local wall-clock time in loc.
func ParseOffsetSuffixed(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	return ParseLocal(offsetSuffix.ReplaceAllString(s, ""), loc)
}

// ParseEpoch parses Unix epoch seconds. An empty, "0" or "null" value is
// absent: ok is false and no error is returned.
func ParseEpoch(s string, loc *time.Location) (t time.Time, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" || strings.EqualFold(s, "null") {
		return time.Time{}, false, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid epoch seconds %q: %w", s, err)
	}
	if secs == 0 {
		return time.Time{}, false, nil
	}
	return time.Unix(secs, 0).In(loc), true, nil
}

// FromFileTime normalizes a filesystem timestamp to whole seconds in loc.
func FromFileTime(t time.Time, loc *time.Location) time.Time {
	return t.In(loc).Truncate(time.Second)
}

// ParseLogStamp parses the spaced date and clock fields written by line logs,
// e.g. "2019 / 03 / 27" and "09 : 14 : 36".
func ParseLogStamp(date, clock string, loc *time.Location) (time.Time, error) {
	d := stampFields.FindAllString(date, -1)
	c := stampFields.FindAllString(clock, -1)
	if len(d) != 3 || len(c) != 3 {
		return time.Time{}, fmt.Errorf("malformed log stamp %q %q", date, clock)
	}
	n := make([]int, 0, 6)
	for _, f := range append(d, c...) {
		v, err := strconv.Atoi(f)
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed log stamp field %q: %w", f, err)
		}
		n = append(n, v)
	}
	if n[1] < 1 || n[1] > 12 || n[2] < 1 || n[2] > 31 || n[3] > 23 || n[4] > 59 || n[5] > 59 {
		return time.Time{}, fmt.Errorf("log stamp out of range %q %q", date, clock)
	}
	return time.Date(n[0], time.Month(n[1]), n[2], n[3], n[4], n[5], 0, loc), nil
}

// ParseRemote parses a timestamp returned by the order API. Unlike artifact
// values, an explicit offset here is a real one and is honored.
func ParseRemote(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if offsetSuffix.MatchString(s) {
		if t, err := time.Parse(time.RFC3339Nano, strings.Replace(s, " ", "T", 1)); err == nil {
			return t.In(loc), nil
		}
	}
	return ParseLocal(s, loc)
}

// Format renders t in loc using WireLayout.
func Format(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(WireLayout)
}

// Transmit applies the encoding's wire shift to an already-normalized instant.
func Transmit(t time.Time, enc Encoding) time.Time {
	return t.Add(enc.WireShift())
}

// Wire renders a normalized instant of encoding enc as it is sent to the order API.
func Wire(t time.Time, enc Encoding, loc *time.Location) string {
	return Format(Transmit(t, enc), loc)
}

package timeline

import (
	"fmt"
	"strings"
	"time"
)

// Stamp is a point on the replay timeline in unix nanoseconds.
type Stamp int64

// Exports carry both isoformat() and str() renderings of datetimes, with or
// without a zone. Naive values are taken as UTC.
var stampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func ParseStamp(s string) (Stamp, error) {
	s = strings.TrimSpace(s)
	for _, layout := range stampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FromTime(t), nil
		}
	}
	return 0, fmt.Errorf("bad timestamp %q", s)
}

func FromTime(t time.Time) Stamp { return Stamp(t.UnixNano()) }

func (s Stamp) Time() time.Time { return time.Unix(0, int64(s)).UTC() }

func (s Stamp) String() string { return s.Time().Format(time.RFC3339Nano) }

func (s Stamp) Add(d time.Duration) Stamp { return s + Stamp(d) }

// Span is a closed timeline interval. The zero Span is unbounded.
type Span struct {
	Start Stamp
	End   Stamp
}

func (sp Span) IsZero() bool { return sp.Start == 0 && sp.End == 0 }

func (sp Span) Clamp(s Stamp) Stamp {
	if sp.IsZero() {
		return s
	}
	if s < sp.Start {
		return sp.Start
	}
	if s > sp.End {
		return sp.End
	}
	return s
}

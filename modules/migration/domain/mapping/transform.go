package mapping

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical output of the date transform.
const DateLayout = "2006-01-02T15:04:05.000Z"

var dateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"2006/1/2 15:04:05",
	"2006/1/2",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	time.RFC1123,
	time.RFC1123Z,
	time.ANSIC,
}

var truthy = map[string]struct{}{
	"true": {}, "1": {}, "yes": {}, "active": {}, "y": {},
}

// ApplyTransform trims value and applies t. The result is a string, or a
// float64 for a successful number transform. It never fails: values a
// transform cannot interpret pass through trimmed.
func ApplyTransform(value string, t Transform) any {
	v := strings.TrimSpace(value)
	switch t {
	case TransformUppercase:
		return asciiUpper(v)
	case TransformLowercase:
		return asciiLower(v)
	case TransformPhone:
		return strings.Map(func(r rune) rune {
			if (r >= '0' && r <= '9') || r == '+' || r == '(' || r == ')' || r == ' ' || r == '-' {
				return r
			}
			return -1
		}, v)
	case TransformDate:
		if d, ok := ParseDate(v); ok {
			return d.Format(DateLayout)
		}
		return v
	case TransformBoolean:
		if _, ok := truthy[asciiLower(v)]; ok {
			return "active"
		}
		return "inactive"
	case TransformNumber:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return v
		}
		return f
	default:
		return v
	}
}

// ParseDate reads v as RFC3339 or one of the legacy layouts. Values without
// a zone are UTC.
func ParseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), true
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// KeyString renders a mapped value the way dedup keys and display need it.
func KeyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

func asciiUpper(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' {
			return r - ('a' - 'A')
		}
		return r
	}, s)
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

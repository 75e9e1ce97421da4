package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrBadNumber reports a numeric element body that is neither decimal nor
// sexagesimal.
var ErrBadNumber = errors.New("invalid numeric value")

// ParseNumber parses a numeric element body. INDI numbers are plain
// decimal ("1.5", "-3e2") or sexagesimal with ':' or ' ' separators
// ("12:30:36", "-79 53 22.5"). The sign of the leading component applies
// to the whole value.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty body", ErrBadNumber)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' })
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
	}
	negative := strings.HasPrefix(strings.TrimSpace(parts[0]), "-")
	magnitude := math.Abs(value)

	divisor := 60.0
	for _, part := range parts[1:] {
		component, err := strconv.ParseFloat(part, 64)
		if err != nil || component < 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadNumber, s)
		}
		magnitude += component / divisor
		divisor *= 60
	}

	if negative {
		return -magnitude, nil
	}
	return magnitude, nil
}

// FormatNumber formats a value according to an INDI printf-style format
// string. The "%<w>.<f>m" sexagesimal conversions are handled here; any
// other verb is passed through to fmt.Sprintf. An empty format falls back
// to a minimal decimal representation.
//
// The fraction width of a %m format selects the sexagesimal layout:
//
//	3  -> ":mm.m"       5 -> ":mm:ss"     6 -> ":mm:ss.s"
//	8  -> ":mm:ss.ss"   9 -> ":mm:ss.sss"
func FormatNumber(value float64, format string) string {
	if format == "" {
		return strconv.FormatFloat(value, 'g', -1, 64)
	}
	width, frac, ok := parseSexFormat(format)
	if !ok {
		return fmt.Sprintf(format, value)
	}
	return formatSexagesimal(value, width, frac)
}

// parseSexFormat recognizes "%<w>.<f>m" and returns its width and
// fraction components.
func parseSexFormat(format string) (width, frac int, ok bool) {
	if !strings.HasPrefix(format, "%") || !strings.HasSuffix(format, "m") {
		return 0, 0, false
	}
	body := format[1 : len(format)-1]
	dot := strings.IndexByte(body, '.')
	if dot < 0 {
		return 0, 0, false
	}
	var err error
	if dot > 0 {
		width, err = strconv.Atoi(body[:dot])
		if err != nil {
			return 0, 0, false
		}
	}
	frac, err = strconv.Atoi(body[dot+1:])
	if err != nil {
		return 0, 0, false
	}
	return width, frac, true
}

// formatSexagesimal renders value in a sexagesimal layout chosen by frac.
// All arithmetic is integer-scaled so component boundaries never show
// ":60" artifacts from float rounding.
func formatSexagesimal(value float64, width, frac int) string {
	sign := ""
	if math.Signbit(value) {
		sign = "-"
		value = -value
	}

	var out string
	switch {
	case frac <= 3:
		// dd:mm.m — scale to tenths of a minute.
		tenths := int64(math.Round(value * 600))
		degrees, rem := tenths/600, tenths%600
		out = fmt.Sprintf("%s%d:%02d.%d", sign, degrees, rem/10, rem%10)
	case frac <= 5:
		// dd:mm:ss — scale to seconds.
		seconds := int64(math.Round(value * 3600))
		degrees, rem := seconds/3600, seconds%3600
		out = fmt.Sprintf("%s%d:%02d:%02d", sign, degrees, rem/60, rem%60)
	default:
		// dd:mm:ss.s[ss] — scale to the requested fraction of a second.
		decimals := 1
		if frac >= 9 {
			decimals = 3
		} else if frac >= 8 {
			decimals = 2
		}
		scale := int64(math.Pow(10, float64(decimals)))
		units := int64(math.Round(value * 3600 * float64(scale)))
		degrees, rem := units/(3600*scale), units%(3600*scale)
		minutes, rem := rem/(60*scale), rem%(60*scale)
		out = fmt.Sprintf("%s%d:%02d:%02d.%0*d", sign, degrees, minutes, rem/scale, decimals, rem%scale)
	}

	if pad := width - len(out); pad > 0 {
		out = strings.Repeat(" ", pad) + out
	}
	return out
}

package rides

import (
	"regexp"
	"strings"
	"time"
)

var (
	decimalPattern = regexp.MustCompile(`^\d*(?:[.,]\d*)?$`)
	datePrefix     = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	timePrefix     = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
	pickerDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	pickerTime     = regexp.MustCompile(`^\d{2}:\d{2}$`)
	whitespace     = regexp.MustCompile(`\s+`)
)

// backend dates that do not start with an ISO date are tried against these.
var dateLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	time.RFC1123Z,
	"Mon Jan 02 2006 15:04:05 GMT-0700",
	"02/01/2006",
}

// ValidDecimal reports whether value (ignoring whitespace) is a partial or
// complete decimal: digits with at most one "." or "," separator. The empty
// string is valid.
func ValidDecimal(value string) bool {
	return decimalPattern.MatchString(whitespace.ReplaceAllString(value, ""))
}

// NormalizeDecimal strips whitespace and converts "," to ".".
func NormalizeDecimal(value string) string {
	return strings.ReplaceAll(whitespace.ReplaceAllString(value, ""), ",", ".")
}

// DateInputValue returns the YYYY-MM-DD form of a stored date for an HTML date
// picker, zero-padding a leading Y-M-D prefix. Values it cannot interpret are
// returned unchanged.
func DateInputValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if m := datePrefix.FindStringSubmatch(trimmed); m != nil {
		return m[1] + "-" + pad2(m[2]) + "-" + pad2(m[3])
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC().Format("2006-01-02")
		}
	}
	return value
}

// TimeInputValue returns the HH:MM prefix of a stored time ("9:30" becomes
// "09:30"), or the value unchanged.
func TimeInputValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if m := timePrefix.FindStringSubmatch(trimmed); m != nil {
		return pad2(m[1]) + ":" + m[2]
	}
	return value
}

// PickerKeeps reports whether a browser date or time picker keeps the picker
// form of stored. Pickers blank values they cannot parse, so a blank post
// for a field where this is false does not mean the user cleared it. Keys
// other than THE_DATE and TIME always report true.
func PickerKeeps(key, stored string) bool {
	switch key {
	case KeyDate:
		return pickerDate.MatchString(DateInputValue(stored))
	case KeyTime:
		return pickerTime.MatchString(TimeInputValue(stored))
	}
	return true
}

func pad2(digits string) string {
	if len(digits) == 1 {
		return "0" + digits
	}
	return digits
}

// EditOptions returns known, prefixed with current when current is a value
// the catalog does not list. Inline selects use it so an existing value is
// never silently replaced.
func EditOptions(current string, known []string) []string {
	trimmed := strings.TrimSpace(current)
	if trimmed == "" {
		return known
	}
	for _, option := range known {
		if option == trimmed {
			return known
		}
	}
	out := make([]string, 0, len(known)+1)
	out = append(out, trimmed)
	return append(out, known...)
}

package service

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Spreadsheet cells arrive as loosely typed JSON values. The coercion
// helpers below turn them into the concrete types the importer needs,
// tolerating the formats seen in real registry exports: Excel serial
// fractions, "14:30", "1430", "2h 30m", ISO datetimes and plain numbers.

var (
	nonDigitRe   = regexp.MustCompile(`[^0-9]`)
	hourTokenRe  = regexp.MustCompile(`(\d+)\s*h`)
	minTokenRe   = regexp.MustCompile(`(\d+)\s*m`)
	firstDigitRe = regexp.MustCompile(`\d+`)
)

// CleanString trims a raw cell into a string, truncated to maxLength when
// positive. Nil and NaN cells become the empty string.
func CleanString(value any, maxLength int) string {
	text := stringify(value)
	text = strings.TrimSpace(text)
	if maxLength > 0 && len(text) > maxLength {
		text = text[:maxLength]
	}
	return text
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 January 2006",
	"2 Jan 2006",
}

var datetimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04",
}

// CoerceDate extracts a calendar date from a cell, or nil.
func CoerceDate(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		d := truncateToDay(v)
		return &d
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, stripped); err == nil {
				d := truncateToDay(parsed)
				return &d
			}
		}
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, stripped); err == nil {
				d := truncateToDay(parsed)
				return &d
			}
		}
	}
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CoerceDatetime extracts a full timestamp from a cell, or nil.
func CoerceDatetime(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return &v
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return nil
		}
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, stripped); err == nil {
				parsed = parsed.UTC()
				return &parsed
			}
		}
	}
	return nil
}

// timeOfDay is a clock time detached from any date.
type timeOfDay struct {
	hour, minute, second int
}

func timeFromDigits(text string) *timeOfDay {
	digits := nonDigitRe.ReplaceAllString(text, "")
	if len(digits) != 3 && len(digits) != 4 {
		return nil
	}
	hours, _ := strconv.Atoi(digits[:len(digits)-2])
	minutes, _ := strconv.Atoi(digits[len(digits)-2:])
	if hours < 0 || hours >= 24 || minutes < 0 || minutes >= 60 {
		return nil
	}
	return &timeOfDay{hour: hours, minute: minutes}
}

// coerceTime extracts a clock time from a cell: HH:MM strings, datetimes,
// bare 3-4 digit forms like "0930", and Excel fraction-of-day floats.
func coerceTime(value any) *timeOfDay {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return &timeOfDay{hour: v.Hour(), minute: v.Minute(), second: v.Second()}
	case string:
		stripped := strings.TrimSpace(v)
		if stripped == "" {
			return nil
		}
		for _, layout := range []string{"15:04:05", "15:04", "3:04PM", "3:04 PM"} {
			if parsed, err := time.Parse(layout, stripped); err == nil {
				return &timeOfDay{hour: parsed.Hour(), minute: parsed.Minute(), second: parsed.Second()}
			}
		}
		if dt := CoerceDatetime(stripped); dt != nil {
			return &timeOfDay{hour: dt.Hour(), minute: dt.Minute(), second: dt.Second()}
		}
		return timeFromDigits(stripped)
	case float64:
		if math.IsNaN(v) {
			return nil
		}
		seconds := int(math.Round(v * 24 * 3600))
		seconds = ((seconds % 86400) + 86400) % 86400
		return &timeOfDay{hour: seconds / 3600, minute: (seconds % 3600) / 60, second: seconds % 60}
	case int:
		return coerceTime(float64(v))
	}
	return nil
}

// CoerceInt extracts an integer minute count from a cell. Fractions below one
// are treated as Excel day fractions, "H:MM" and "1h 30m" forms as durations.
func CoerceInt(value any) *int {
	switch v := value.(type) {
	case nil:
		return nil
	case bool:
		n := 0
		if v {
			n = 1
		}
		return &n
	case int:
		return &v
	case int64:
		n := int(v)
		return &n
	case float64:
		if math.IsNaN(v) {
			return nil
		}
		if abs := math.Abs(v); abs > 0 && abs < 1 {
			n := int(math.Round(v * 24 * 60))
			return &n
		}
		n := int(math.Round(v))
		return &n
	case string:
		return coerceIntFromString(v)
	}
	return nil
}

func coerceIntFromString(value string) *int {
	text := strings.ToLower(strings.TrimSpace(value))
	if text == "" {
		return nil
	}
	if strings.Contains(text, ":") {
		var parts []string
		for _, p := range strings.Split(text, ":") {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) >= 2 {
			hours, errH := strconv.Atoi(strings.TrimSpace(parts[0]))
			minutes, errM := strconv.Atoi(strings.TrimSpace(parts[1]))
			if errH == nil && errM == nil {
				n := hours*60 + minutes
				return &n
			}
		}
	}
	if num, err := strconv.ParseFloat(text, 64); err == nil {
		if abs := math.Abs(num); abs > 0 && abs < 1 {
			n := int(math.Round(num * 24 * 60))
			return &n
		}
		n := int(math.Round(num))
		return &n
	}
	hourMatch := hourTokenRe.FindStringSubmatch(text)
	minuteMatch := minTokenRe.FindStringSubmatch(text)
	if hourMatch != nil || minuteMatch != nil {
		hours, minutes := 0, 0
		if hourMatch != nil {
			hours, _ = strconv.Atoi(hourMatch[1])
		}
		if minuteMatch != nil {
			minutes, _ = strconv.Atoi(minuteMatch[1])
		}
		n := hours*60 + minutes
		return &n
	}
	if digits := firstDigitRe.FindString(text); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			return &n
		}
	}
	return nil
}

// CombineStartDatetime resolves the start timestamp of an exam from its start
// cell and date cell. A full datetime in the start cell wins; otherwise the
// date and clock time are combined.
func CombineStartDatetime(startValue, dateValue any) *time.Time {
	if direct := CoerceDatetime(startValue); direct != nil {
		return direct
	}
	dateVal := CoerceDate(dateValue)
	clock := coerceTime(startValue)
	if dateVal != nil && clock != nil {
		combined := time.Date(dateVal.Year(), dateVal.Month(), dateVal.Day(),
			clock.hour, clock.minute, clock.second, 0, time.UTC)
		return &combined
	}
	return nil
}

// DurationInMinutes resolves an exam duration: the explicit length cell wins;
// otherwise it is derived from the end time, rolling over midnight when the
// end reads earlier than the start. Unresolvable durations are 0.
func DurationInMinutes(lengthValue, endValue any, start *time.Time) int {
	if duration := CoerceInt(lengthValue); duration != nil {
		if *duration < 0 {
			return 0
		}
		return *duration
	}
	endClock := coerceTime(endValue)
	if start == nil || endClock == nil {
		return 0
	}
	end := time.Date(start.Year(), start.Month(), start.Day(),
		endClock.hour, endClock.minute, endClock.second, 0, start.Location())
	if end.Before(*start) {
		end = end.AddDate(0, 0, 1)
	}
	minutes := int(end.Sub(*start).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

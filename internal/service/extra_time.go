package service

import (
	"math"
	"time"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// ExtraTimeMinutes derives the extra-time allowance in minutes from provision
// codes. When several extra-time codes are present the most generous rule
// wins. A zero or unknown base length yields no extra time for rate-based
// codes and zero for the doubling code.
func ExtraTimeMinutes(provisions []string, baseLength *int) int {
	base := 0
	if baseLength != nil {
		base = *baseLength
	}
	extra := 0
	record := func(minutes int) {
		if minutes > extra {
			extra = minutes
		}
	}
	for _, prov := range provisions {
		switch prov {
		case models.ProvisionExtraTime100:
			record(base)
		case models.ProvisionExtraTime30PerHour:
			record(perHour(base, 30))
		case models.ProvisionExtraTime20PerHour:
			record(perHour(base, 20))
		case models.ProvisionExtraTime15PerHour:
			record(perHour(base, 15))
		case models.ProvisionExtraTime:
			record(int(math.Ceil(float64(base) * 0.25)))
		}
	}
	return extra
}

func perHour(base, minutes int) int {
	return int(math.Ceil(float64(base) / 60 * float64(minutes)))
}

// ApplyExtraTime shifts the start earlier where possible, never before the
// earliest permitted hour on the same day, and always adds the full extra
// allowance to the duration so total = base + extra. A nil base length with a
// positive allowance yields a duration of just the allowance.
func ApplyExtraTime(baseStart *time.Time, baseLength *int, extraMinutes, earliestHour int) (*time.Time, *int) {
	if extraMinutes <= 0 {
		return baseStart, baseLength
	}

	newStart := baseStart
	if baseStart != nil {
		earliest := time.Date(baseStart.Year(), baseStart.Month(), baseStart.Day(),
			earliestHour, 0, 0, 0, baseStart.Location())
		available := int(baseStart.Sub(earliest).Minutes())
		if available < 0 {
			available = 0
		}
		shift := extraMinutes
		if available < shift {
			shift = available
		}
		if shift > 0 {
			shifted := baseStart.Add(-time.Duration(shift) * time.Minute)
			newStart = &shifted
		}
	}

	newLength := extraMinutes
	if baseLength != nil {
		newLength = *baseLength + extraMinutes
	}
	return newStart, &newLength
}

// HasSmallExtraTime reports whether the allowance works out at no more than
// the threshold of minutes per hour of base exam time. Small allowances keep
// the student in the core hall.
func HasSmallExtraTime(extraMinutes int, baseLength *int, perHourThreshold int) bool {
	if extraMinutes <= 0 || baseLength == nil || *baseLength <= 0 {
		return false
	}
	hours := float64(*baseLength) / 60
	return float64(extraMinutes)/hours <= float64(perHourThreshold)
}

package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

var (
	slugStripRe  = regexp.MustCompile(`[^a-z0-9_]+`)
	digitsRe     = regexp.MustCompile(`\d+`)
	tokenSplitRe = regexp.MustCompile(`[;,/]`)
)

// Slugify collapses a raw spreadsheet token into a lookup key: lowercased,
// spaces to underscores, everything else stripped.
func Slugify(value string) string {
	s := strings.ToLower(strings.TrimSpace(value))
	s = strings.ReplaceAll(s, " ", "_")
	return slugStripRe.ReplaceAllString(s, "")
}

// provisionLabels pairs each canonical code with the human-readable label it
// appears under in registry exports. Both the code and the label slug resolve
// to the code.
var provisionLabels = map[string]string{
	models.ProvisionDataAsPresented:      "Data as presented to Registry",
	models.ProvisionAccessibleExamHall:   "Accessible exam hall: must be ground floor or have reliable lift access available",
	models.ProvisionAccessibleHall:       "Accessible hall",
	models.ProvisionAllowedEatDrink:      "Allowed to eat and drink",
	models.ProvisionAssistedEvacuation:   "Assisted evacuation required",
	models.ProvisionAdditionalComment:    "Exam Additional Comment",
	models.ProvisionAlternativeFormat:    "Exam paper required in alternative format",
	models.ProvisionExtraTime:            "Extra Time",
	models.ProvisionExtraTime100:         "Extra time 100%",
	models.ProvisionExtraTime15PerHour:   "Extra time 15 minutes every hour",
	models.ProvisionExtraTime20PerHour:   "Extra time 20 minutes every hour",
	models.ProvisionExtraTime30PerHour:   "Extra time 30 minutes every hour",
	models.ProvisionInvigilatorAwareness: "Invigilator awareness",
	models.ProvisionSeatedAtBack:         "Seated at back",
	models.ProvisionSeparateRoomNotOwn:   "Separate room not on own",
	models.ProvisionSeparateRoomOnOwn:    "Separate room on own",
	models.ProvisionToiletBreaks:         "Toilet breaks required",
	models.ProvisionUseComputer:          "Use of a computer",
	models.ProvisionUseReader:            "Reader",
	models.ProvisionUseScribe:            "Scribe",
	models.ProvisionVerbalInstrWritten:   "Verbal instructions in written format",
}

// provisionSlugMap resolves token slugs to canonical codes. Built from codes,
// labels and the shorthand seen in legacy registry data.
var provisionSlugMap = buildProvisionSlugMap()

func buildProvisionSlugMap() map[string]string {
	m := make(map[string]string, 3*len(provisionLabels))
	for code, label := range provisionLabels {
		m[Slugify(code)] = code
		m[Slugify(label)] = code
	}
	for slug, code := range map[string]string{
		"reader":          models.ProvisionUseReader,
		"use_reader":      models.ProvisionUseReader,
		"useofareader":    models.ProvisionUseReader,
		"use_of_a_reader": models.ProvisionUseReader,
		"scribe":          models.ProvisionUseScribe,
		"use_scribe":      models.ProvisionUseScribe,
		"useofascribe":    models.ProvisionUseScribe,
		"use_of_a_scribe": models.ProvisionUseScribe,
		"computer":        models.ProvisionUseComputer,
		"use_computer":    models.ProvisionUseComputer,
		"extra_time":      models.ProvisionExtraTime,
	} {
		m[slug] = code
	}
	return m
}

// matchExtraTimeToken maps free-form extra-time wording that the slug table
// misses onto the closest tier, e.g. "Extra time 30 minutes every hour" or
// "extra time 100%".
func matchExtraTimeToken(slug string) string {
	if !strings.Contains(slug, "extra") || !strings.Contains(slug, "time") {
		return ""
	}
	var numbers []int
	for _, d := range digitsRe.FindAllString(slug, -1) {
		if n, err := strconv.Atoi(d); err == nil {
			numbers = append(numbers, n)
		}
	}
	for _, n := range numbers {
		if n == 100 {
			return models.ProvisionExtraTime100
		}
	}
	if strings.Contains(slug, "hour") {
		for _, n := range numbers {
			switch n {
			case 30:
				return models.ProvisionExtraTime30PerHour
			case 20:
				return models.ProvisionExtraTime20PerHour
			case 15:
				return models.ProvisionExtraTime15PerHour
			}
		}
	}
	return models.ProvisionExtraTime
}

// NormalizeProvisions splits a raw provision cell on ; , / and resolves each
// token to its canonical code, deduplicating while preserving order. Tokens
// that resolve to nothing are appended to unknown (when non-nil), cleaned and
// deduplicated by slug.
func NormalizeProvisions(value string, unknown *[]string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	tokens := tokenSplitRe.Split(value, -1)

	var normalized []string
	seen := make(map[string]bool)
	unknownSeen := make(map[string]bool)
	for _, token := range tokens {
		slug := Slugify(token)
		mapped := provisionSlugMap[slug]
		if mapped == "" {
			mapped = matchExtraTimeToken(slug)
		}
		if mapped != "" {
			if !seen[mapped] {
				normalized = append(normalized, mapped)
				seen[mapped] = true
			}
			continue
		}
		if unknown == nil || slug == "" {
			continue
		}
		cleaned := CleanString(token, 60)
		if cleaned != "" && !unknownSeen[slug] {
			unknownSeen[slug] = true
			*unknown = append(*unknown, cleaned)
		}
	}
	return normalized
}

// RequiredCapabilities maps provision codes to the venue capability tags that
// constrain allocation. Assisted evacuation implies an accessible hall.
func RequiredCapabilities(provisions []string) []string {
	mapping := map[string]string{
		models.ProvisionSeparateRoomOnOwn:  models.CapSeparateRoomOnOwn,
		models.ProvisionSeparateRoomNotOwn: models.CapSeparateRoomNotOnOwn,
		models.ProvisionUseComputer:        models.CapUseComputer,
		models.ProvisionAccessibleHall:     models.CapAccessibleHall,
		models.ProvisionAssistedEvacuation: models.CapAccessibleHall,
	}
	var caps []string
	seen := make(map[string]bool)
	for _, prov := range provisions {
		cap := mapping[prov]
		if cap != "" && !seen[cap] {
			caps = append(caps, cap)
			seen[cap] = true
		}
	}
	return caps
}

// NeedsAccessibleVenue reports whether the provisions demand an accessible room.
func NeedsAccessibleVenue(provisions []string) bool {
	for _, prov := range provisions {
		if prov == models.ProvisionAccessibleHall || prov == models.ProvisionAssistedEvacuation {
			return true
		}
	}
	return false
}

// NeedsSeparateRoom reports whether the provisions demand any separate room.
func NeedsSeparateRoom(provisions []string) bool {
	for _, prov := range provisions {
		if prov == models.ProvisionSeparateRoomOnOwn || prov == models.ProvisionSeparateRoomNotOwn {
			return true
		}
	}
	return false
}

// NeedsComputer reports whether the provisions demand a computer.
func NeedsComputer(provisions []string) bool {
	for _, prov := range provisions {
		if prov == models.ProvisionUseComputer {
			return true
		}
	}
	return false
}

// ExamRequiresComputer reports whether the exam type itself implies computer
// delivery, e.g. CMOL or digital on-campus sittings.
func ExamRequiresComputer(examType string) bool {
	lowered := strings.ToLower(strings.TrimSpace(examType))
	if lowered == "" {
		return false
	}
	switch lowered {
	case "cmol", "on_campus_online", "on campus online", "on campus online exam":
		return true
	}
	if strings.Contains(lowered, "campus") &&
		(strings.Contains(lowered, "online") || strings.Contains(lowered, "digital")) {
		return true
	}
	if strings.Contains(lowered, "digital on campus") || strings.Contains(lowered, "online on campus") {
		return true
	}
	return false
}

// AllowedVenueTypes returns the venue types a computer-dependent student may
// sit in, or nil when any type is acceptable.
func AllowedVenueTypes(needsComputer bool) map[string]bool {
	if !needsComputer {
		return nil
	}
	return map[string]bool{
		models.VenueTypeComputerCluster: true,
		models.VenueTypePurpleCluster:   true,
	}
}

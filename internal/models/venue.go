package models

import "github.com/lib/pq"

// Venue types recognised by the allocator.
const (
	VenueTypeMainHall        = "main_hall"
	VenueTypePurpleCluster   = "purple_cluster"
	VenueTypeComputerCluster = "computer_cluster"
	VenueTypeSeparateRoom    = "separate_room"
	VenueTypeSchoolToSort    = "school_to_sort"
	VenueTypeCoreExamVenue   = "core_exam_venue"
	VenueTypeDetachedDuty    = "detached_duty"
	VenueTypeAdmin           = "admin"
)

// Venue is a physical exam room keyed by its unique name.
// Availability holds ISO dates on which the room may be used; an empty list
// means the room is unrestricted.
type Venue struct {
	Name           string         `db:"venue_name" json:"venue_name"`
	Capacity       int            `db:"capacity" json:"capacity"`
	VenueType      string         `db:"venue_type" json:"venue_type"`
	IsAccessible   bool           `db:"is_accessible" json:"is_accessible"`
	Capabilities   pq.StringArray `db:"capabilities" json:"capabilities"`
	Availability   pq.StringArray `db:"availability" json:"availability"`
	AdditionalInfo string         `db:"additional_info" json:"additional_info"`
}

// HasCapability reports whether the venue advertises the given capability tag.
func (v *Venue) HasCapability(cap string) bool {
	for _, c := range v.Capabilities {
		if c == cap {
			return true
		}
	}
	return false
}

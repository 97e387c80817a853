package dto

// VenueRequest is the API payload for creating or updating a venue.
type VenueRequest struct {
	Name           string   `json:"venue_name" binding:"required,max=255"`
	Capacity       int      `json:"capacity" binding:"min=0"`
	VenueType      string   `json:"venue_type"`
	IsAccessible   *bool    `json:"is_accessible"`
	Capabilities   []string `json:"capabilities"`
	Availability   []string `json:"availability"`
	AdditionalInfo string   `json:"additional_info"`
}

package models

import "github.com/lib/pq"

// Canonical provision codes produced by upload normalisation.
const (
	ProvisionDataAsPresented      = "data_as_presented_to_registry"
	ProvisionAccessibleExamHall   = "accessible_exam_hall_ground_or_lift"
	ProvisionAdditionalComment    = "exam_additional_comment"
	ProvisionAccessibleHall       = "accessible_hall"
	ProvisionAllowedEatDrink      = "allowed_eat_drink"
	ProvisionAssistedEvacuation   = "assisted_evacuation_required"
	ProvisionAlternativeFormat    = "alternative_format_paper"
	ProvisionExtraTime            = "extra_time"
	ProvisionExtraTime100         = "extra_time_100"
	ProvisionExtraTime15PerHour   = "extra_time_15_per_hour"
	ProvisionExtraTime20PerHour   = "extra_time_20_per_hour"
	ProvisionExtraTime30PerHour   = "extra_time_30_per_hour"
	ProvisionInvigilatorAwareness = "invigilator_awareness"
	ProvisionSeatedAtBack         = "seated_at_back"
	ProvisionSeparateRoomNotOwn   = "separate_room_not_on_own"
	ProvisionSeparateRoomOnOwn    = "separate_room_on_own"
	ProvisionToiletBreaks         = "toilet_breaks_required"
	ProvisionUseComputer          = "use_computer"
	ProvisionUseReader            = "reader"
	ProvisionUseScribe            = "scribe"
	ProvisionVerbalInstrWritten   = "verbal_instr_written"
)

// Capability tags carried by venues and exam-venue slots. These are the
// subset of provision codes that constrain which room a student can sit in.
const (
	CapSeparateRoomOnOwn    = ProvisionSeparateRoomOnOwn
	CapSeparateRoomNotOnOwn = ProvisionSeparateRoomNotOwn
	CapUseComputer          = ProvisionUseComputer
	CapAccessibleHall       = ProvisionAccessibleHall
)

// Provision records a student's accommodation needs for one exam.
type Provision struct {
	ID        int64          `db:"provision_id" json:"provision_id"`
	ExamID    int64          `db:"exam_id" json:"exam_id"`
	StudentID string         `db:"student_id" json:"student_id"`
	Codes     pq.StringArray `db:"codes" json:"codes"`
	Notes     *string        `db:"notes" json:"notes"`
}

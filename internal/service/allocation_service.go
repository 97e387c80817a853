package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	"github.com/lithium-apps/exam-timetabling-api/pkg/config"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
)

type allocationVenueStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Venue, error)
}

type allocationSlotStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.ExamVenue, error)
	ListByExam(ctx context.Context, exec sqlx.ExtContext, examID int64) ([]models.ExamVenue, error)
	ListByVenue(ctx context.Context, exec sqlx.ExtContext, venueName string) ([]models.ExamVenue, error)
	FindExact(ctx context.Context, exec sqlx.ExtContext, examID int64, venueName string, start *time.Time, length *int) (*models.ExamVenue, error)
	Create(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error
	Update(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error
}

type allocationAssignmentStore interface {
	CountByExamVenue(ctx context.Context, exec sqlx.ExtContext, examVenueID int64, excludeID string) (int, error)
	UpdateExamVenue(ctx context.Context, exec sqlx.ExtContext, id string, examVenueID *int64) error
}

// AllocationService resolves one student's provisions for one exam into an
// exam-venue slot, creating placeholder slots when no room satisfies the
// requirements.
type AllocationService struct {
	venues      allocationVenueStore
	slots       allocationSlotStore
	assignments allocationAssignmentStore
	logger      *zap.Logger
	metrics     *MetricsService

	earliestStartHour int
	smallExtraPerHour int
}

// NewAllocationService constructs the service.
func NewAllocationService(
	venues allocationVenueStore,
	slots allocationSlotStore,
	assignments allocationAssignmentStore,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg config.AllocatorConfig,
) *AllocationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	earliest := cfg.EarliestStartHour
	if earliest <= 0 || earliest >= 24 {
		earliest = 9
	}
	threshold := cfg.SmallExtraTimePerHour
	if threshold <= 0 {
		threshold = 15
	}
	return &AllocationService{
		venues:            venues,
		slots:             slots,
		assignments:       assignments,
		logger:            logger,
		metrics:           metrics,
		earliestStartHour: earliest,
		smallExtraPerHour: threshold,
	}
}

// allocationPlan is the per-student allocation context derived from the
// provisions and the current state of the exam's slots.
type allocationPlan struct {
	exam          *models.Exam
	studentExamID string

	requiredCaps   []string
	matchCaps      []string
	individualRoom bool
	separateRoom   bool
	needsAccess    bool
	needsComputer  bool
	allowedTypes   map[string]bool

	slots      []models.ExamVenue
	venueList  []models.Venue
	venueNames map[string]*models.Venue

	coreVenueNames map[string]bool
	preferred      *models.Venue
	avoidNames     map[string]bool

	extraMinutes int
	targetStart  *time.Time
	targetLength *int
	allowOverlap bool
}

func (p *allocationPlan) venue(name string) *models.Venue {
	return p.venueNames[name]
}

func (p *allocationPlan) timingMatches(ev *models.ExamVenue) bool {
	if p.targetStart != nil && !timePtrEqual(ev.StartTime, p.targetStart) {
		return false
	}
	if p.targetLength != nil && (ev.ExamLength == nil || *ev.ExamLength != *p.targetLength) {
		return false
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// buildPlan derives the allocation constraints for one (student, exam) pair.
func (s *AllocationService) buildPlan(ctx context.Context, exec sqlx.ExtContext, studentExamID string, exam *models.Exam, provisions []string) (*allocationPlan, error) {
	requiredCaps := RequiredCapabilities(provisions)

	var matchCaps []string
	for _, cap := range requiredCaps {
		switch cap {
		case models.CapSeparateRoomOnOwn, models.CapSeparateRoomNotOnOwn, models.CapUseComputer:
		default:
			matchCaps = append(matchCaps, cap)
		}
	}

	individualRoom := containsString(requiredCaps, models.CapSeparateRoomOnOwn)
	separateRoom := individualRoom || containsString(requiredCaps, models.CapSeparateRoomNotOnOwn)
	needsComputer := NeedsComputer(provisions) || ExamRequiresComputer(exam.ExamType)

	slots, err := s.slots.ListByExam(ctx, exec, exam.ID)
	if err != nil {
		return nil, err
	}
	venueList, err := s.venues.List(ctx, exec)
	if err != nil {
		return nil, err
	}
	venueNames := make(map[string]*models.Venue, len(venueList))
	for i := range venueList {
		venueNames[venueList[i].Name] = &venueList[i]
	}

	coreVenueNames := make(map[string]bool)
	var coreVenue *models.Venue
	for i := range slots {
		ev := &slots[i]
		if !ev.Core || ev.VenueName == nil {
			continue
		}
		coreVenueNames[*ev.VenueName] = true
		if coreVenue == nil {
			coreVenue = venueNames[*ev.VenueName]
		}
	}

	baseStart, baseLength := coreExamTiming(slots)
	extra := ExtraTimeMinutes(provisions, baseLength)
	targetStart, targetLength := ApplyExtraTime(baseStart, baseLength, extra, s.earliestStartHour)
	small := HasSmallExtraTime(extra, baseLength, s.smallExtraPerHour)

	avoidCore := (extra > 0 && !small) || separateRoom
	var avoidNames map[string]bool
	if avoidCore && len(coreVenueNames) > 0 {
		avoidNames = coreVenueNames
	}

	var preferred *models.Venue
	if small && !separateRoom && !needsComputer {
		preferred = coreVenue
		if NeedsAccessibleVenue(provisions) && preferred != nil && !preferred.IsAccessible {
			preferred = nil
		}
	}

	return &allocationPlan{
		exam:           exam,
		studentExamID:  studentExamID,
		requiredCaps:   requiredCaps,
		matchCaps:      matchCaps,
		individualRoom: individualRoom,
		separateRoom:   separateRoom,
		needsAccess:    NeedsAccessibleVenue(provisions),
		needsComputer:  needsComputer,
		allowedTypes:   AllowedVenueTypes(needsComputer),
		slots:          slots,
		venueList:      venueList,
		venueNames:     venueNames,
		coreVenueNames: coreVenueNames,
		preferred:      preferred,
		avoidNames:     avoidNames,
		extraMinutes:   extra,
		targetStart:    targetStart,
		targetLength:   targetLength,
		allowOverlap:   extra > 0 && !individualRoom,
	}, nil
}

// coreExamTiming returns the baseline start and length: the first core slot,
// falling back to the first slot of any kind.
func coreExamTiming(slots []models.ExamVenue) (*time.Time, *int) {
	for i := range slots {
		if slots[i].Core {
			return slots[i].StartTime, slots[i].ExamLength
		}
	}
	if len(slots) > 0 {
		return slots[0].StartTime, slots[0].ExamLength
	}
	return nil, nil
}

// slotIsReserved reports whether the slot is an individual room already held
// by a different student.
func (s *AllocationService) slotIsReserved(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue, excludeStudentExamID string) (bool, error) {
	if !ev.HasCapability(models.CapSeparateRoomOnOwn) {
		return false, nil
	}
	count, err := s.assignments.CountByExamVenue(ctx, exec, ev.ID, excludeStudentExamID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// findMatching scans the exam's existing bound slots for one that satisfies
// the plan exactly, trying the preferred venue first.
func (s *AllocationService) findMatching(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan) (*models.ExamVenue, error) {
	matches := func(ev *models.ExamVenue) (bool, error) {
		reserved, err := s.slotIsReserved(ctx, exec, ev, p.studentExamID)
		if err != nil {
			return false, err
		}
		if reserved {
			return false, nil
		}
		if p.individualRoom {
			count, err := s.assignments.CountByExamVenue(ctx, exec, ev.ID, p.studentExamID)
			if err != nil {
				return false, err
			}
			if count > 0 {
				return false, nil
			}
		}
		if ev.IsPlaceholder() {
			return false, nil
		}
		venue := p.venue(*ev.VenueName)
		if venue == nil {
			return false, nil
		}
		if p.avoidNames != nil && p.avoidNames[venue.Name] {
			return false, nil
		}
		if len(p.matchCaps) > 0 && !VenueSupportsCaps(venue, p.matchCaps) {
			return false, nil
		}
		if p.needsAccess && !venue.IsAccessible {
			return false, nil
		}
		if p.allowedTypes != nil && !p.allowedTypes[venue.VenueType] {
			return false, nil
		}
		return p.timingMatches(ev), nil
	}

	if p.preferred != nil {
		for i := range p.slots {
			ev := &p.slots[i]
			if ev.VenueName == nil || *ev.VenueName != p.preferred.Name {
				continue
			}
			ok, err := matches(ev)
			if err != nil {
				return nil, err
			}
			if ok {
				return ev, nil
			}
		}
	}
	for i := range p.slots {
		ev := &p.slots[i]
		if ev.IsPlaceholder() {
			continue
		}
		ok, err := matches(ev)
		if err != nil {
			return nil, err
		}
		if ok {
			return ev, nil
		}
	}
	return nil, nil
}

// allocate picks the first venue that satisfies the plan, reusing or binding
// placeholder slots where possible. With no surviving candidate it leaves a
// placeholder carrying the requirements.
func (s *AllocationService) allocate(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan) (*models.ExamVenue, error) {
	allowOverlap := p.allowOverlap
	if p.individualRoom {
		allowOverlap = false
	}

	selected, err := s.firstEligibleVenue(ctx, exec, p, allowOverlap)
	if err != nil {
		return nil, err
	}

	placeholder, placeholderAssigned, err := s.reusablePlaceholder(ctx, exec, p)
	if err != nil {
		return nil, err
	}

	if selected == nil {
		if placeholder != nil {
			if err := s.updatePlaceholder(ctx, exec, p, placeholder, placeholderAssigned, nil); err != nil {
				return nil, err
			}
			return placeholder, nil
		}
		created := &models.ExamVenue{
			ExamID:       p.exam.ID,
			StartTime:    p.targetStart,
			ExamLength:   p.targetLength,
			Capabilities: p.requiredCaps,
		}
		if err := s.slots.Create(ctx, exec, created); err != nil {
			return nil, err
		}
		s.logger.Info("created placeholder slot",
			zap.Int64("exam_id", p.exam.ID),
			zap.Strings("capabilities", p.requiredCaps))
		return created, nil
	}

	if placeholder != nil {
		if err := s.updatePlaceholder(ctx, exec, p, placeholder, placeholderAssigned, selected); err != nil {
			return nil, err
		}
		return placeholder, nil
	}

	existing, err := s.slots.FindExact(ctx, exec, p.exam.ID, selected.Name, p.targetStart, p.targetLength)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		reserved, err := s.slotIsReserved(ctx, exec, existing, p.studentExamID)
		if err != nil {
			return nil, err
		}
		if reserved {
			existing = nil
		} else if p.individualRoom {
			count, err := s.assignments.CountByExamVenue(ctx, exec, existing.ID, p.studentExamID)
			if err != nil {
				return nil, err
			}
			if count > 0 {
				existing = nil
			}
		}
	}
	if existing != nil {
		if merged, changed := mergeCaps(existing.Capabilities, p.requiredCaps); changed {
			existing.Capabilities = merged
			if err := s.slots.Update(ctx, exec, existing); err != nil {
				return nil, err
			}
		}
		return existing, nil
	}

	created := &models.ExamVenue{
		ExamID:       p.exam.ID,
		VenueName:    &selected.Name,
		StartTime:    p.targetStart,
		ExamLength:   p.targetLength,
		Capabilities: p.requiredCaps,
	}
	if err := s.slots.Create(ctx, exec, created); err != nil {
		return nil, err
	}
	return created, nil
}

// firstEligibleVenue walks the candidate order (preferred, core venues, then
// every venue by name) and returns the first room passing every filter.
func (s *AllocationService) firstEligibleVenue(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan, allowOverlap bool) (*models.Venue, error) {
	var order []*models.Venue
	if p.preferred != nil {
		order = append(order, p.preferred)
	}
	for i := range p.slots {
		ev := &p.slots[i]
		if !ev.Core || ev.VenueName == nil {
			continue
		}
		if p.avoidNames != nil && p.avoidNames[*ev.VenueName] {
			continue
		}
		if v := p.venue(*ev.VenueName); v != nil {
			order = append(order, v)
		}
	}
	for i := range p.venueList {
		order = append(order, &p.venueList[i])
	}

	ignoreExamID := p.exam.ID
	if p.individualRoom {
		ignoreExamID = 0
	}

	seen := make(map[string]bool)
	for _, venue := range order {
		if venue == nil || seen[venue.Name] {
			continue
		}
		seen[venue.Name] = true
		if p.avoidNames != nil && p.avoidNames[venue.Name] {
			continue
		}
		if p.allowedTypes != nil && !p.allowedTypes[venue.VenueType] {
			continue
		}
		if len(p.matchCaps) > 0 && !VenueSupportsCaps(venue, p.matchCaps) {
			continue
		}
		if p.needsAccess && !venue.IsAccessible {
			continue
		}
		if !VenueIsAvailable(venue, p.targetStart) {
			continue
		}
		booked, err := s.slots.ListByVenue(ctx, exec, venue.Name)
		if err != nil {
			return nil, err
		}
		if VenueHasTimingConflict(booked, p.targetStart, p.targetLength, ignoreExamID, allowOverlap) {
			continue
		}
		return venue, nil
	}
	return nil, nil
}

// reusablePlaceholder picks the oldest placeholder of the exam that the plan
// may take over, and reports whether other students already sit in it.
func (s *AllocationService) reusablePlaceholder(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan) (*models.ExamVenue, bool, error) {
	var placeholder *models.ExamVenue
	for i := range p.slots {
		ev := &p.slots[i]
		if !ev.IsPlaceholder() {
			continue
		}
		if p.individualRoom {
			count, err := s.assignments.CountByExamVenue(ctx, exec, ev.ID, "")
			if err != nil {
				return nil, false, err
			}
			if count > 0 {
				continue
			}
		}
		placeholder = ev
		break
	}
	if placeholder == nil {
		return nil, false, nil
	}

	reserved, err := s.slotIsReserved(ctx, exec, placeholder, p.studentExamID)
	if err != nil {
		return nil, false, err
	}
	if reserved {
		return nil, false, nil
	}
	count, err := s.assignments.CountByExamVenue(ctx, exec, placeholder.ID, p.studentExamID)
	if err != nil {
		return nil, false, err
	}
	assigned := count > 0
	if assigned && !p.timingMatches(placeholder) {
		return nil, false, nil
	}
	return placeholder, assigned, nil
}

// updatePlaceholder merges the plan's requirements into the placeholder,
// binding it to the selected venue when one survived the filters. Timing is
// only rewritten while the placeholder has no other occupants.
func (s *AllocationService) updatePlaceholder(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan, placeholder *models.ExamVenue, assigned bool, selected *models.Venue) error {
	dirty := false
	if selected != nil {
		placeholder.VenueName = &selected.Name
		dirty = true
	}
	if merged, changed := mergeCaps(placeholder.Capabilities, p.requiredCaps); changed {
		placeholder.Capabilities = merged
		dirty = true
	}
	if !assigned {
		if p.targetStart != nil && !timePtrEqual(placeholder.StartTime, p.targetStart) {
			placeholder.StartTime = p.targetStart
			dirty = true
		}
		if p.targetLength != nil && (placeholder.ExamLength == nil || *placeholder.ExamLength != *p.targetLength) {
			placeholder.ExamLength = p.targetLength
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return s.slots.Update(ctx, exec, placeholder)
}

// Resolve allocates (or re-allocates) the slot for one student's exam sitting
// given their normalized provision codes. It returns whether the student was
// moved to a different slot. Individual rooms already held by another student
// produce ErrRoomOccupied.
func (s *AllocationService) Resolve(ctx context.Context, exec sqlx.ExtContext, studentExam *models.StudentExam, exam *models.Exam, provisions []string) (bool, error) {
	plan, err := s.buildPlan(ctx, exec, studentExam.ID, exam, provisions)
	if err != nil {
		s.metrics.RecordAllocation(AllocationOutcomeFailed)
		return false, fmt.Errorf("build allocation plan: %w", err)
	}

	var slot *models.ExamVenue
	if plan.individualRoom && studentExam.ExamVenueID != nil {
		slot, err = s.slots.FindByID(ctx, exec, *studentExam.ExamVenueID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, err
		}
	}
	if slot == nil {
		slot, err = s.findMatching(ctx, exec, plan)
		if err != nil {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, err
		}
	}
	if slot != nil && plan.allowedTypes != nil && slot.VenueName != nil {
		if v := plan.venue(*slot.VenueName); v == nil || !plan.allowedTypes[v.VenueType] {
			slot = nil
		}
	}
	if slot == nil {
		slot, err = s.allocate(ctx, exec, plan)
		if err != nil {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, err
		}
	}

	if err := s.applyTarget(ctx, exec, plan, slot); err != nil {
		s.metrics.RecordAllocation(AllocationOutcomeFailed)
		return false, err
	}

	changed := studentExam.ExamVenueID == nil || *studentExam.ExamVenueID != slot.ID
	if changed {
		reserved, err := s.slotIsReserved(ctx, exec, slot, studentExam.ID)
		if err != nil {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, err
		}
		if reserved {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, appErrors.ErrRoomOccupied
		}
		if err := s.assignments.UpdateExamVenue(ctx, exec, studentExam.ID, &slot.ID); err != nil {
			s.metrics.RecordAllocation(AllocationOutcomeFailed)
			return false, err
		}
		studentExam.ExamVenueID = &slot.ID
	}

	switch {
	case slot.IsPlaceholder():
		s.metrics.RecordAllocation(AllocationOutcomePlaceholder)
	case changed:
		s.metrics.RecordAllocation(AllocationOutcomeAllocated)
	default:
		s.metrics.RecordAllocation(AllocationOutcomeReused)
	}
	return changed, nil
}

// applyTarget merges the plan's timing and capability requirements onto the
// chosen slot.
func (s *AllocationService) applyTarget(ctx context.Context, exec sqlx.ExtContext, p *allocationPlan, slot *models.ExamVenue) error {
	dirty := false
	if p.targetStart != nil && !timePtrEqual(slot.StartTime, p.targetStart) {
		slot.StartTime = p.targetStart
		dirty = true
	}
	if p.targetLength != nil && (slot.ExamLength == nil || *slot.ExamLength != *p.targetLength) {
		slot.ExamLength = p.targetLength
		dirty = true
	}
	if len(p.requiredCaps) > 0 {
		if merged, changed := mergeCaps(slot.Capabilities, p.requiredCaps); changed {
			slot.Capabilities = merged
			dirty = true
		}
	}
	if !dirty {
		return nil
	}
	return s.slots.Update(ctx, exec, slot)
}

// mergeCaps returns the sorted union of the existing and incoming capability
// tags, and whether that differs from the existing set.
func mergeCaps(existing []string, incoming []string) ([]string, bool) {
	missing := false
	for _, cap := range incoming {
		if !containsString(existing, cap) {
			missing = true
			break
		}
	}
	if !missing {
		return existing, false
	}
	set := make(map[string]bool, len(existing)+len(incoming))
	for _, cap := range existing {
		set[cap] = true
	}
	for _, cap := range incoming {
		set[cap] = true
	}
	merged := make([]string, 0, len(set))
	for cap := range set {
		merged = append(merged, cap)
	}
	sort.Strings(merged)
	return merged, true
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

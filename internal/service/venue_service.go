package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lithium-apps/exam-timetabling-api/internal/dto"
	"github.com/lithium-apps/exam-timetabling-api/internal/models"
	"github.com/lithium-apps/exam-timetabling-api/pkg/config"
	appErrors "github.com/lithium-apps/exam-timetabling-api/pkg/errors"
)

type venueStore interface {
	List(ctx context.Context, exec sqlx.ExtContext) ([]models.Venue, error)
	FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Venue, error)
	Create(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error
	Update(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error
}

type venueSlotStore interface {
	ListByExam(ctx context.Context, exec sqlx.ExtContext, examID int64) ([]models.ExamVenue, error)
	ListByVenue(ctx context.Context, exec sqlx.ExtContext, venueName string) ([]models.ExamVenue, error)
	ListPlaceholders(ctx context.Context, exec sqlx.ExtContext) ([]models.ExamVenue, error)
	FindByExamAndVenue(ctx context.Context, exec sqlx.ExtContext, examID int64, venueName string) (*models.ExamVenue, error)
	Update(ctx context.Context, exec sqlx.ExtContext, ev *models.ExamVenue) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id int64) error
}

type venueAssignmentStore interface {
	ReassignExamVenue(ctx context.Context, exec sqlx.ExtContext, fromID, toID int64) error
	CountByExamVenues(ctx context.Context, examID int64) (map[int64]int, error)
}

type venueExamStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id int64) (*models.Exam, error)
}

type statsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// VenueService manages venue records, promotes placeholder slots when rooms
// gain capabilities, and serves per-exam seating statistics.
type VenueService struct {
	tx          txProvider
	venues      venueStore
	slots       venueSlotStore
	assignments venueAssignmentStore
	exams       venueExamStore
	cache       statsCache
	logger      *zap.Logger
	metrics     *MetricsService

	statsEnabled bool
	statsTTL     time.Duration
}

// NewVenueService constructs the service.
func NewVenueService(
	tx txProvider,
	venues venueStore,
	slots venueSlotStore,
	assignments venueAssignmentStore,
	exams venueExamStore,
	cache statsCache,
	logger *zap.Logger,
	metrics *MetricsService,
	cfg config.StatsConfig,
) *VenueService {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &VenueService{
		tx:           tx,
		venues:       venues,
		slots:        slots,
		assignments:  assignments,
		exams:        exams,
		cache:        cache,
		logger:       logger,
		metrics:      metrics,
		statsEnabled: cfg.Enabled,
		statsTTL:     ttl,
	}
}

// NormalizeVenueType defaults a venue advertising computer capability to a
// computer cluster unless it is already a computer-friendly type.
func NormalizeVenueType(venueType string, capabilities []string) string {
	if !containsString(capabilities, models.CapUseComputer) {
		return venueType
	}
	switch venueType {
	case models.VenueTypeComputerCluster, models.VenueTypePurpleCluster:
		return venueType
	}
	return models.VenueTypeComputerCluster
}

// List returns every venue.
func (s *VenueService) List(ctx context.Context) ([]models.Venue, error) {
	venues, err := s.venues.List(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list venues")
	}
	return venues, nil
}

// Get returns one venue by name.
func (s *VenueService) Get(ctx context.Context, name string) (*models.Venue, error) {
	venue, err := s.venues.FindByName(ctx, nil, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("venue '%s' not found", name))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
	}
	return venue, nil
}

// Save upserts a venue from an API payload, normalizing its type and then
// promoting any placeholder slots the room can now satisfy. The whole
// operation runs in one transaction.
func (s *VenueService) Save(ctx context.Context, req dto.VenueRequest) (venue *models.Venue, created bool, err error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	venueType := NormalizeVenueType(defaultString(req.VenueType, models.VenueTypeSchoolToSort), req.Capabilities)
	accessible := true
	if req.IsAccessible != nil {
		accessible = *req.IsAccessible
	}

	existing, err := s.venues.FindByName(ctx, tx, req.Name)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load venue")
	}
	if existing == nil {
		venue = &models.Venue{
			Name:           req.Name,
			Capacity:       req.Capacity,
			VenueType:      venueType,
			IsAccessible:   accessible,
			Capabilities:   req.Capabilities,
			Availability:   req.Availability,
			AdditionalInfo: req.AdditionalInfo,
		}
		if err = s.venues.Create(ctx, tx, venue); err != nil {
			return nil, false, err
		}
		created = true
	} else {
		venue = existing
		venue.Capacity = req.Capacity
		venue.VenueType = venueType
		venue.IsAccessible = accessible
		venue.Capabilities = req.Capabilities
		venue.Availability = req.Availability
		venue.AdditionalInfo = req.AdditionalInfo
		if err = s.venues.Update(ctx, tx, venue); err != nil {
			return nil, false, err
		}
	}

	if err = s.AttachPlaceholders(ctx, tx, venue); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit venue save")
	}
	return venue, created, nil
}

// AttachPlaceholders upgrades placeholder slots the venue can now satisfy:
// capability-compatible, accessible where demanded, available on the slot's
// date and free of timing conflicts. Placeholders without requirements are
// never touched so a freshly edited room does not absorb every unallocated
// exam. When the exam already has a slot in this venue the placeholder's
// students are moved over and the placeholder is removed.
func (s *VenueService) AttachPlaceholders(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error {
	placeholders, err := s.slots.ListPlaceholders(ctx, exec)
	if err != nil {
		return err
	}
	for i := range placeholders {
		ev := &placeholders[i]
		caps := []string(ev.Capabilities)
		if len(caps) == 0 {
			continue
		}
		if !VenueSupportsCaps(venue, caps) {
			continue
		}
		if containsString(caps, models.CapAccessibleHall) && !venue.IsAccessible {
			continue
		}
		if !VenueIsAvailable(venue, ev.StartTime) {
			continue
		}
		booked, err := s.slots.ListByVenue(ctx, exec, venue.Name)
		if err != nil {
			return err
		}
		if VenueHasTimingConflict(booked, ev.StartTime, ev.ExamLength, ev.ExamID, false) {
			continue
		}

		existing, err := s.slots.FindByExamAndVenue(ctx, exec, ev.ExamID, venue.Name)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if existing != nil {
			if err := s.assignments.ReassignExamVenue(ctx, exec, ev.ID, existing.ID); err != nil {
				return err
			}
			if err := s.slots.Delete(ctx, exec, ev.ID); err != nil {
				return err
			}
			s.logger.Info("collapsed placeholder into existing slot",
				zap.Int64("placeholder_id", ev.ID),
				zap.Int64("exam_venue_id", existing.ID),
				zap.String("venue", venue.Name))
			continue
		}

		ev.VenueName = &venue.Name
		if err := s.slots.Update(ctx, exec, ev); err != nil {
			return err
		}
		s.logger.Info("promoted placeholder to venue",
			zap.Int64("exam_venue_id", ev.ID),
			zap.String("venue", venue.Name))
	}
	return nil
}

func statsCacheKey(examID int64) string {
	return fmt.Sprintf("venue_stats:exam:%d", examID)
}

// ExamStats returns per-exam seating statistics: how many students remain in
// the core venue and how many sit in each alternative slot. Results are
// cached when stats caching is enabled.
func (s *VenueService) ExamStats(ctx context.Context, examID int64) (*dto.VenueStats, error) {
	key := statsCacheKey(examID)
	if s.statsEnabled && s.cache != nil {
		var cached dto.VenueStats
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("venue stats cache read failed", zap.Error(err))
		}
		s.metrics.RecordCacheLookup(false)
	}

	exam, err := s.exams.FindByID(ctx, nil, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("exam %d not found", examID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}

	counts, err := s.assignments.CountByExamVenues(ctx, examID)
	if err != nil {
		return nil, err
	}
	slots, err := s.slots.ListByExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}

	stats := &dto.VenueStats{
		ExamID:            examID,
		CoreSize:          coreExamSize(exam, slots, counts),
		ExamVenueStudents: counts,
		GeneratedAt:       time.Now().UTC(),
	}

	if s.statsEnabled && s.cache != nil {
		if err := s.cache.Set(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.Warn("venue stats cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

// InvalidateExamStats drops the cached statistics for one exam.
func (s *VenueService) InvalidateExamStats(ctx context.Context, examID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, statsCacheKey(examID)); err != nil {
		s.logger.Warn("venue stats cache invalidation failed", zap.Error(err))
	}
}

// coreExamSize estimates how many students sit the core venue: the exam's
// headcount minus students moved to alternative slots. Slots sharing the core
// venue's room (small extra-time allocations) do not reduce the count.
func coreExamSize(exam *models.Exam, slots []models.ExamVenue, counts map[int64]int) int {
	total := exam.NoStudents

	var core *models.ExamVenue
	for i := range slots {
		if slots[i].Core {
			core = &slots[i]
			break
		}
	}
	for i := range slots {
		ev := &slots[i]
		if core != nil {
			if ev.ID == core.ID {
				continue
			}
			if ev.VenueName != nil && core.VenueName != nil && *ev.VenueName == *core.VenueName {
				continue
			}
		}
		total -= counts[ev.ID]
	}
	if total < 0 {
		return 0
	}
	return total
}

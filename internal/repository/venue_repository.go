package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// VenueRepository manages persistence for physical exam venues.
type VenueRepository struct {
	db *sqlx.DB
}

// NewVenueRepository constructs a VenueRepository.
func NewVenueRepository(db *sqlx.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

func (r *VenueRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const venueColumns = "venue_name, capacity, venue_type, is_accessible, capabilities, availability, additional_info"

// List returns every venue ordered by name. Candidate scans depend on this
// ordering being stable between calls.
func (r *VenueRepository) List(ctx context.Context, exec sqlx.ExtContext) ([]models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues ORDER BY venue_name", venueColumns)
	var venues []models.Venue
	if err := sqlx.SelectContext(ctx, r.exec(exec), &venues, query); err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	return venues, nil
}

// ListByType returns venues of the given type ordered by name.
func (r *VenueRepository) ListByType(ctx context.Context, exec sqlx.ExtContext, venueType string) ([]models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues WHERE venue_type = $1 ORDER BY venue_name", venueColumns)
	var venues []models.Venue
	if err := sqlx.SelectContext(ctx, r.exec(exec), &venues, query, venueType); err != nil {
		return nil, fmt.Errorf("list venues by type: %w", err)
	}
	return venues, nil
}

// FindByName fetches one venue by its unique name.
func (r *VenueRepository) FindByName(ctx context.Context, exec sqlx.ExtContext, name string) (*models.Venue, error) {
	query := fmt.Sprintf("SELECT %s FROM venues WHERE venue_name = $1", venueColumns)
	var venue models.Venue
	if err := sqlx.GetContext(ctx, r.exec(exec), &venue, query, name); err != nil {
		return nil, err
	}
	return &venue, nil
}

// Create inserts a venue row.
func (r *VenueRepository) Create(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error {
	const query = `
INSERT INTO venues (venue_name, capacity, venue_type, is_accessible, capabilities, availability, additional_info)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		venue.Name, venue.Capacity, venue.VenueType, venue.IsAccessible,
		venue.Capabilities, venue.Availability, venue.AdditionalInfo); err != nil {
		return fmt.Errorf("insert venue: %w", err)
	}
	return nil
}

// Update rewrites an existing venue row.
func (r *VenueRepository) Update(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) error {
	const query = `
UPDATE venues
SET capacity = $2, venue_type = $3, is_accessible = $4, capabilities = $5, availability = $6, additional_info = $7
WHERE venue_name = $1`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		venue.Name, venue.Capacity, venue.VenueType, venue.IsAccessible,
		venue.Capabilities, venue.Availability, venue.AdditionalInfo); err != nil {
		return fmt.Errorf("update venue: %w", err)
	}
	return nil
}

// GetOrCreate loads the venue with the given name, inserting the provided
// defaults when it does not exist yet. Reports whether a row was created.
func (r *VenueRepository) GetOrCreate(ctx context.Context, exec sqlx.ExtContext, venue *models.Venue) (bool, error) {
	existing, err := r.FindByName(ctx, exec, venue.Name)
	if err == nil {
		*venue = *existing
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("find venue: %w", err)
	}
	if err := r.Create(ctx, exec, venue); err != nil {
		return false, err
	}
	return true, nil
}

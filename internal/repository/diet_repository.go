package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lithium-apps/exam-timetabling-api/internal/models"
)

// DietRepository reads the administrative exam periods.
type DietRepository struct {
	db *sqlx.DB
}

// NewDietRepository constructs a DietRepository.
func NewDietRepository(db *sqlx.DB) *DietRepository {
	return &DietRepository{db: db}
}

const dietColumns = "id, code, name, start_date, end_date, restriction_cutoff, is_active"

// List returns every diet ordered by start date.
func (r *DietRepository) List(ctx context.Context) ([]models.Diet, error) {
	query := fmt.Sprintf("SELECT %s FROM diets ORDER BY start_date NULLS LAST, id", dietColumns)
	var diets []models.Diet
	if err := r.db.SelectContext(ctx, &diets, query); err != nil {
		return nil, fmt.Errorf("list diets: %w", err)
	}
	return diets, nil
}

// FindActive fetches the currently active diet.
func (r *DietRepository) FindActive(ctx context.Context) (*models.Diet, error) {
	query := fmt.Sprintf("SELECT %s FROM diets WHERE is_active ORDER BY start_date DESC NULLS LAST LIMIT 1", dietColumns)
	var diet models.Diet
	if err := r.db.GetContext(ctx, &diet, query); err != nil {
		return nil, err
	}
	return &diet, nil
}

// FindByCode fetches a diet by its short code.
func (r *DietRepository) FindByCode(ctx context.Context, code string) (*models.Diet, error) {
	query := fmt.Sprintf("SELECT %s FROM diets WHERE code = $1", dietColumns)
	var diet models.Diet
	if err := r.db.GetContext(ctx, &diet, query, code); err != nil {
		return nil, err
	}
	return &diet, nil
}

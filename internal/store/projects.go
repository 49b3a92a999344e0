package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	errs "reelscout/pkg/errors"
	"reelscout/pkg/models"
)

// ProjectRepository provides project-related database operations
type ProjectRepository struct {
	db *gorm.DB
}

// Create adds an active project. An existing name returns the stored row
// with created set to false.
func (r *ProjectRepository) Create(ctx context.Context, name string) (*models.Project, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, errs.Validation("project name is empty")
	}

	project := &models.Project{Name: name, Active: true}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "name"}}, DoNothing: true}).
		Create(project)
	if res.Error != nil {
		return nil, false, errs.Storage("failed to create project", res.Error)
	}
	if res.RowsAffected > 0 {
		return project, true, nil
	}

	existing, err := r.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, errs.Storage(fmt.Sprintf("project %q vanished after conflict", name), nil)
	}
	return existing, false, nil
}

// Get retrieves a project by ID, nil when absent
func (r *ProjectRepository) Get(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load project", err)
	}
	return &project, nil
}

// GetByName retrieves a project by name, nil when absent
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	var project models.Project
	err := r.db.WithContext(ctx).Where("name = ?", strings.TrimSpace(name)).First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errs.Storage("failed to load project", err)
	}
	return &project, nil
}

// List returns all projects ordered by name
func (r *ProjectRepository) List(ctx context.Context) ([]models.Project, error) {
	var projects []models.Project
	if err := r.db.WithContext(ctx).Order("name").Find(&projects).Error; err != nil {
		return nil, errs.Storage("failed to list projects", err)
	}
	return projects, nil
}

// SetActive flips the project's active flag
func (r *ProjectRepository) SetActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Update("active", active)
	if res.Error != nil {
		return errs.Storage("failed to update project", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.Validation(fmt.Sprintf("project %d not found", id))
	}
	return nil
}

package lands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrLandNotFound = errors.New("land not found")

// Repository defines data access for listings
type Repository interface {
	Create(ctx context.Context, land *Land) error
	GetByID(ctx context.Context, id uuid.UUID) (*Land, error)
	List(ctx context.Context, filter LandFilter) ([]Land, error)
	Update(ctx context.Context, land *Land) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// GormRepository implements Repository on top of gorm
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a listing repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the lands table
func (r *GormRepository) Migrate() error {
	if err := r.db.AutoMigrate(&Land{}); err != nil {
		return fmt.Errorf("failed to migrate lands: %w", err)
	}
	return nil
}

func (r *GormRepository) Create(ctx context.Context, land *Land) error {
	if err := r.db.WithContext(ctx).Create(land).Error; err != nil {
		return fmt.Errorf("failed to create land: %w", err)
	}
	return nil
}

func (r *GormRepository) GetByID(ctx context.Context, id uuid.UUID) (*Land, error) {
	var land Land
	err := r.db.WithContext(ctx).First(&land, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLandNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get land: %w", err)
	}
	return &land, nil
}

func (r *GormRepository) List(ctx context.Context, filter LandFilter) ([]Land, error) {
	q := r.db.WithContext(ctx).Model(&Land{})
	if filter.Region != "" {
		q = q.Where("region = ?", filter.Region)
	}
	if filter.District != "" {
		q = q.Where("district = ?", filter.District)
	}

	var out []Land
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list lands: %w", err)
	}
	return out, nil
}

func (r *GormRepository) Update(ctx context.Context, land *Land) error {
	if err := r.db.WithContext(ctx).Save(land).Error; err != nil {
		return fmt.Errorf("failed to update land: %w", err)
	}
	return nil
}

func (r *GormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&Land{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete land: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrLandNotFound
	}
	return nil
}

package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrCategoryNotFound is returned when a category is not found.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrDuplicateCategory is returned when a user already has a category with the name.
	ErrDuplicateCategory = errors.New("category already exists")
)

type CategoriesRepository struct {
	db *gorm.DB
}

func NewCategoriesRepository(db *gorm.DB) *CategoriesRepository {
	return &CategoriesRepository{db: db}
}

// ListCategories returns the user's categories ordered by name.
func (r *CategoriesRepository) ListCategories(ctx context.Context, userID uint) ([]Category, error) {
	var categories []Category
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoriesRepository) GetCategory(ctx context.Context, userID, id uint) (*Category, error) {
	return r.first(ctx, "user_id = ? AND id = ?", userID, id)
}

func (r *CategoriesRepository) GetCategoryByName(ctx context.Context, userID uint, name string) (*Category, error) {
	return r.first(ctx, "user_id = ? AND name = ?", userID, name)
}

func (r *CategoriesRepository) first(ctx context.Context, cond string, args ...any) (*Category, error) {
	var c Category
	if err := r.db.WithContext(ctx).Where(cond, args...).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *CategoriesRepository) CreateCategory(ctx context.Context, category *Category) error {
	err := r.db.WithContext(ctx).Create(category).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateCategory
	}
	return err
}

// DeleteCategory detaches the category's items and removes it.
func (r *CategoriesRepository) DeleteCategory(ctx context.Context, userID, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Item{}).
			Where("user_id = ? AND category_id = ?", userID, id).
			Update("category_id", nil)
		if res.Error != nil {
			return res.Error
		}

		res = tx.Where("user_id = ? AND id = ?", userID, id).Delete(&Category{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrCategoryNotFound
		}
		return nil
	})
}

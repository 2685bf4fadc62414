package models

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrItemNotFound is returned when an item is not found.
	ErrItemNotFound = errors.New("item not found")
	// ErrDuplicateBarcode is returned when a user already has an item with the barcode.
	ErrDuplicateBarcode = errors.New("barcode already exists")
)

type ItemsRepository struct {
	db *gorm.DB
}

// ItemFilters narrows a dashboard listing.
type ItemFilters struct {
	CategoryID *uint
}

func NewItemsRepository(db *gorm.DB) *ItemsRepository {
	return &ItemsRepository{
		db: db,
	}
}

func (r *ItemsRepository) ListItems(ctx context.Context, userID uint, filters ItemFilters) ([]Item, error) {
	var items []Item

	query := r.db.WithContext(ctx).
		Preload("Category").
		Where("user_id = ?", userID)

	if filters.CategoryID != nil {
		query = query.Where("category_id = ?", *filters.CategoryID)
	}

	if err := query.Order("created_at DESC").Order("id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemsRepository) GetItem(ctx context.Context, userID, id uint) (*Item, error) {
	return r.first(ctx, "user_id = ? AND id = ?", userID, id)
}

func (r *ItemsRepository) GetItemByBarcode(ctx context.Context, userID uint, barcode string) (*Item, error) {
	return r.first(ctx, "user_id = ? AND barcode = ?", userID, barcode)
}

func (r *ItemsRepository) first(ctx context.Context, cond string, args ...any) (*Item, error) {
	var item Item
	if err := r.db.WithContext(ctx).
		Preload("Category").
		Where(cond, args...).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, err // Other DB error
	}
	return &item, nil
}

// GetItems returns the user's items among ids, in id order.
func (r *ItemsRepository) GetItems(ctx context.Context, userID uint, ids []uint) ([]Item, error) {
	var items []Item
	if len(ids) == 0 {
		return items, nil
	}
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("id").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// BarcodeTaken reports whether another of the user's items uses barcode.
func (r *ItemsRepository) BarcodeTaken(ctx context.Context, userID uint, barcode string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Item{}).
		Where("user_id = ? AND barcode = ? AND id <> ?", userID, barcode, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *ItemsRepository) CreateItem(ctx context.Context, item *Item) error {
	return translate(r.db.WithContext(ctx).Omit("Category").Create(item).Error)
}

func (r *ItemsRepository) UpdateItem(ctx context.Context, item *Item) error {
	return translate(r.db.WithContext(ctx).Omit("Category").Save(item).Error)
}

func (r *ItemsRepository) DeleteItem(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&Item{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

// DeleteItems deletes the user's items among ids and returns how many went.
func (r *ItemsRepository) DeleteItems(ctx context.Context, userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&Item{})
	return res.RowsAffected, res.Error
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateBarcode
	}
	return err
}

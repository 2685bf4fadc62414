package models

// Category groups a user's items. Names are unique per user.
type Category struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"not null;uniqueIndex:idx_categories_user_name,priority:1"`
	Name   string `gorm:"size:120;not null;uniqueIndex:idx_categories_user_name,priority:2"`
}

func (c *Category) TableName() string {
	return "categories"
}

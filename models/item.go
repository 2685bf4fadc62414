package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/poshstock/poshstock/pricing"
)

// Item is a piece of inventory. The schema is fixed: optional values are
// pointers or NullDecimal and are never probed for at write time.
type Item struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"not null;index;uniqueIndex:idx_items_user_barcode,priority:1"`
	CategoryID     *uint     `gorm:"index"`
	Category       *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:SET NULL"`
	Title          string    `gorm:"size:255;not null"`
	Brand          string    `gorm:"size:120"`
	Size           string    `gorm:"size:60"`
	Color          string    `gorm:"size:60"`
	Condition      string    `gorm:"size:120"`
	Notes          string    `gorm:"type:text"`
	Barcode        *string   `gorm:"size:64;uniqueIndex:idx_items_user_barcode,priority:2"`
	PurchaseSource string    `gorm:"size:120"`

	PurchasePrice decimal.Decimal     `gorm:"type:decimal(10,2);not null;default:0"`
	PurchaseDate  *time.Time          `gorm:"type:date"`
	ListPrice     decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	PhotoPath     string              `gorm:"size:255"`
	SoldPrice     decimal.NullDecimal `gorm:"type:decimal(10,2)"`
	SoldDate      *time.Time          `gorm:"type:date"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

func (i *Item) TableName() string {
	return "items"
}

// BarcodeValue returns the barcode or "" when unset.
func (i *Item) BarcodeValue() string {
	if i.Barcode == nil {
		return ""
	}
	return *i.Barcode
}

// Payout is only defined once the item has sold.
func (i *Item) Payout(s pricing.Schedule) decimal.NullDecimal {
	if !i.SoldPrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.Payout(i.SoldPrice.Decimal))
}

func (i *Item) Profit(s pricing.Schedule) decimal.NullDecimal {
	if !i.SoldPrice.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(s.Profit(i.SoldPrice.Decimal, i.PurchasePrice))
}

// BreakEven is the minimum list price covering the purchase price; it is
// invalid for items bought for nothing.
func (i *Item) BreakEven(s pricing.Schedule) decimal.NullDecimal {
	be, err := s.BreakEven(i.PurchasePrice)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(be)
}

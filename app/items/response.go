package items

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/poshstock/poshstock/models"
	"github.com/poshstock/poshstock/pricing"
)

const dateLayout = "2006-01-02"

type Response struct {
	Total int            `json:"total"`
	Items []ItemResponse `json:"items"`
}

type Category struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// ItemResponse carries money as fixed two-decimal strings. Payout, profit
// and break-even are derived on read and never stored.
type ItemResponse struct {
	ID             uint      `json:"id"`
	Title          string    `json:"title"`
	Brand          string    `json:"brand,omitempty"`
	Size           string    `json:"size,omitempty"`
	Color          string    `json:"color,omitempty"`
	Condition      string    `json:"condition,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Barcode        *string   `json:"barcode"`
	Category       *Category `json:"category"`
	PurchaseSource string    `json:"purchase_source,omitempty"`
	PurchasePrice  string    `json:"purchase_price"`
	PurchaseDate   *string   `json:"purchase_date"`
	ListPrice      *string   `json:"list_price"`
	SoldPrice      *string   `json:"sold_price"`
	SoldDate       *string   `json:"sold_date"`
	PhotoURL       string    `json:"photo_url,omitempty"`
	Payout         *string   `json:"payout"`
	Profit         *string   `json:"profit"`
	BreakEven      *string   `json:"break_even"`
	CreatedAt      time.Time `json:"created_at"`
}

func money(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(2)
	return &s
}

func date(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func toResponse(item *models.Item, s pricing.Schedule) ItemResponse {
	resp := ItemResponse{
		ID:             item.ID,
		Title:          item.Title,
		Brand:          item.Brand,
		Size:           item.Size,
		Color:          item.Color,
		Condition:      item.Condition,
		Notes:          item.Notes,
		Barcode:        item.Barcode,
		PurchaseSource: item.PurchaseSource,
		PurchasePrice:  item.PurchasePrice.StringFixed(2),
		PurchaseDate:   date(item.PurchaseDate),
		ListPrice:      money(item.ListPrice),
		SoldPrice:      money(item.SoldPrice),
		SoldDate:       date(item.SoldDate),
		Payout:         money(item.Payout(s)),
		Profit:         money(item.Profit(s)),
		BreakEven:      money(item.BreakEven(s)),
		CreatedAt:      item.CreatedAt,
	}
	if item.PhotoPath != "" {
		resp.PhotoURL = "/" + item.PhotoPath
	}
	if item.Category != nil {
		resp.Category = &Category{ID: item.Category.ID, Name: item.Category.Name}
	}
	return resp
}

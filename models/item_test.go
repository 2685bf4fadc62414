package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/poshstock/poshstock/pricing"
)

func TestItemPricing(t *testing.T) {
	item := Item{PurchasePrice: decimal.RequireFromString("5.00")}

	assert.False(t, item.Payout(pricing.Poshmark).Valid)
	assert.False(t, item.Profit(pricing.Poshmark).Valid)
	be := item.BreakEven(pricing.Poshmark)
	assert.True(t, be.Valid)
	assert.Equal(t, "7.95", be.Decimal.StringFixed(2))

	item.SoldPrice = decimal.NewNullDecimal(decimal.RequireFromString("20.00"))
	assert.Equal(t, "16.00", item.Payout(pricing.Poshmark).Decimal.StringFixed(2))
	assert.Equal(t, "11.00", item.Profit(pricing.Poshmark).Decimal.StringFixed(2))

	free := Item{}
	assert.False(t, free.BreakEven(pricing.Poshmark).Valid)
	assert.Equal(t, "", free.BarcodeValue())
}

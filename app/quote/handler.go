package quote

import (
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/poshstock/poshstock/app/respond"
	"github.com/poshstock/poshstock/pricing"
)

type QuoteResponse struct {
	SalePrice string  `json:"sale_price"`
	Fee       string  `json:"fee"`
	Payout    string  `json:"payout"`
	Profit    *string `json:"profit"`
	BreakEven *string `json:"break_even,omitempty"`
}

type BreakEvenResponse struct {
	Cost      string `json:"cost"`
	BreakEven string `json:"break_even"`
	Fee       string `json:"fee"`
	Payout    string `json:"payout"`
}

type PricingHandler struct {
	schedule pricing.Schedule
}

func NewPricingHandler(s pricing.Schedule) *PricingHandler {
	return &PricingHandler{schedule: s}
}

func fixed(d decimal.Decimal) *string {
	s := d.StringFixed(2)
	return &s
}

func nonNegative(raw string) (decimal.Decimal, error) {
	d, err := pricing.ParseMoney(raw)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, pricing.ErrInvalidAmount
	}
	return d, nil
}

// HandleQuote answers ?sale=&cost= with the fee breakdown. cost is optional.
func (h *PricingHandler) HandleQuote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sale, err := nonNegative(q.Get("sale"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid sale price")
		return
	}

	var cost *decimal.Decimal
	if raw := q.Get("cost"); raw != "" {
		c, err := nonNegative(raw)
		if err != nil {
			respond.WriteError(w, http.StatusBadRequest, "Invalid cost")
			return
		}
		cost = &c
	}

	quote := h.schedule.Quote(sale, cost)
	resp := QuoteResponse{
		SalePrice: quote.SalePrice.StringFixed(2),
		Fee:       quote.Fee.StringFixed(2),
		Payout:    quote.Payout.StringFixed(2),
	}
	if quote.Profit.Valid {
		resp.Profit = fixed(quote.Profit.Decimal)
	}
	if cost != nil {
		if be, err := h.schedule.BreakEven(*cost); err == nil {
			resp.BreakEven = fixed(be)
		}
	}

	respond.WriteJSON(w, http.StatusOK, resp)
}

func (h *PricingHandler) HandleBreakEven(w http.ResponseWriter, r *http.Request) {
	cost, err := pricing.ParseMoney(r.URL.Query().Get("cost"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "Invalid cost")
		return
	}

	be, err := h.schedule.BreakEven(cost)
	if err != nil {
		if errors.Is(err, pricing.ErrNotComputable) {
			respond.WriteError(w, http.StatusUnprocessableEntity, "Break-even is not computable for a cost of zero or less")
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, "Failed to compute break-even")
		return
	}

	respond.WriteJSON(w, http.StatusOK, BreakEvenResponse{
		Cost:      cost.StringFixed(2),
		BreakEven: be.StringFixed(2),
		Fee:       h.schedule.Fee(be).StringFixed(2),
		Payout:    h.schedule.Payout(be).StringFixed(2),
	})
}

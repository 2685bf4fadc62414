package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/poshstock/poshstock/pricing"
)

func (c *cli) priceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Marketplace fee, payout and break-even calculations",
	}
	cmd.AddCommand(c.priceQuoteCmd())
	cmd.AddCommand(c.priceBreakEvenCmd())
	return cmd
}

func (c *cli) priceQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote <sale-price>",
		Short: "Show the fee and payout for a sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := c.cfg.Schedule()
			if err != nil {
				return err
			}
			sale, err := pricing.ParseMoney(args[0])
			if err != nil {
				return err
			}

			var cost *decimal.Decimal
			if raw, _ := cmd.Flags().GetString("cost"); raw != "" {
				d, err := pricing.ParseMoney(raw)
				if err != nil {
					return fmt.Errorf("cost: %w", err)
				}
				cost = &d
			}

			q := schedule.Quote(sale, cost)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sale:   %s\n", q.SalePrice.StringFixed(2))
			fmt.Fprintf(out, "fee:    %s\n", q.Fee.StringFixed(2))
			fmt.Fprintf(out, "payout: %s\n", q.Payout.StringFixed(2))
			if q.Profit.Valid {
				fmt.Fprintf(out, "profit: %s\n", q.Profit.Decimal.StringFixed(2))
			}
			return nil
		},
	}
	cmd.Flags().String("cost", "", "purchase price, to show profit")
	return cmd
}

func (c *cli) priceBreakEvenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "breakeven <cost>",
		Short: "Show the lowest list price that recovers a cost",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := c.cfg.Schedule()
			if err != nil {
				return err
			}
			cost, err := pricing.ParseMoney(args[0])
			if err != nil {
				return err
			}
			be, err := schedule.BreakEven(cost)
			if err != nil {
				return fmt.Errorf("cost %s: %w", cost.StringFixed(2), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), be.StringFixed(2))
			return nil
		},
	}
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hedgedesk/exposure-engine/internal/coverage"
	"github.com/hedgedesk/exposure-engine/internal/exposure"
	"github.com/hedgedesk/exposure-engine/internal/model"
)

type netExposureOutput struct {
	Rows   []model.NetExposureRow `json:"rows"`
	Totals exposure.Totals        `json:"totals"`
}

func newNetExposureCmd(rc *RootConfig) *cobra.Command {
	var product, period string

	cmd := &cobra.Command{
		Use:   "net-exposure",
		Short: "Aggregate the book into product|period net buckets",
		Example: `  hedgectl net-exposure --book book.json
  hedgectl net-exposure --book book.json --product Aluminum --period 2025-03`,
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := rc.loadBook()
			if err != nil {
				return err
			}
			rows := exposure.Aggregate(book.Exposures, book.Hedges, book.SalesOrders)
			rows = exposure.SortRows(exposure.FilterRows(rows, product, period))
			return rc.print(cmd, netExposureOutput{Rows: rows, Totals: exposure.Sum(rows)})
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "only this product")
	cmd.Flags().StringVar(&period, "period", "", "only this period (YYYY-MM)")
	return cmd
}

func newPendingCmd(rc *RootConfig) *cobra.Command {
	var soID string

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List active orders whose hedge is not concluded",
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := rc.loadBook()
			if err != nil {
				return err
			}
			if soID == "" {
				return rc.print(cmd, coverage.Pending(book))
			}

			// Coverage status of a single sales order, concluded included.
			hedged := coverage.HedgedBySalesOrder(book.Hedges)
			for _, so := range book.SalesOrders {
				if so.ID != soID {
					continue
				}
				var exp *model.Exposure
				for i := range book.Exposures {
					e := &book.Exposures[i]
					if e.SourceType == model.ObjectSO && e.SourceID == so.ID {
						exp = e
					}
				}
				return rc.print(cmd, map[string]string{
					"so_id":  so.ID,
					"hedged": hedged[so.ID].String(),
					"status": coverage.Classify(so, exp, hedged[so.ID]),
				})
			}
			return fmt.Errorf("sales order %q not found", soID)
		},
	}

	cmd.Flags().StringVar(&soID, "so", "", "classify a single sales order")
	return cmd
}

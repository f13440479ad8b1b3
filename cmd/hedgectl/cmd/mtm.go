package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/hedgedesk/exposure-engine/internal/config"
	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/mtm"
)

type mtmOutput struct {
	Valuations []mtm.HedgeValuation `json:"valuations"`
	Total      decimal.Decimal      `json:"total"`
}

func newMTMCmd(rc *RootConfig) *cobra.Command {
	var (
		hedgeID    string
		symbol     string
		source     string
		fxSymbol   string
		haircut    string
		convention string
	)

	cmd := &cobra.Command{
		Use:   "mtm",
		Short: "Mark hedges to market",
		Long: `Without --hedge, values every active hedge from its own fields.
With --hedge, values that hedge at the latest market price in the book.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := mtm.ParseConvention(convention)
			if err != nil {
				return err
			}
			book, err := rc.loadBook()
			if err != nil {
				return err
			}

			if hedgeID == "" {
				vals := mtm.ValueActive(book.Hedges, conv)
				return rc.print(cmd, mtmOutput{Valuations: vals, Total: mtm.TotalDefined(vals)})
			}

			var hedge *model.Hedge
			for i := range book.Hedges {
				if book.Hedges[i].ID == hedgeID {
					hedge = &book.Hedges[i]
					break
				}
			}
			if hedge == nil {
				return fmt.Errorf("hedge %q not found", hedgeID)
			}

			opts := mtm.Options{Symbol: symbol, Source: source, FXSymbol: fxSymbol, Convention: conv}
			if haircut != "" {
				pct, err := decimal.NewFromString(haircut)
				if err != nil {
					return fmt.Errorf("bad --haircut: %w", err)
				}
				opts.HaircutPct = decimal.NewNullDecimal(pct)
			}
			res, err := mtm.ComputeHedge(*hedge, book.MarketPrices, opts)
			if err != nil {
				return err
			}
			return rc.print(cmd, res)
		},
	}

	cmd.Flags().StringVar(&hedgeID, "hedge", "", "hedge id to value at market")
	cmd.Flags().StringVar(&symbol, "symbol", "", "price symbol (default: hedge instrument)")
	cmd.Flags().StringVar(&source, "source", "", "price source filter")
	cmd.Flags().StringVar(&fxSymbol, "fx-symbol", "", "convert by the latest rate of this FX symbol")
	cmd.Flags().StringVar(&haircut, "haircut", "", "haircut scenario in percent (0-100)")
	cmd.Flags().StringVar(&convention, "convention", "bought", "sign convention (bought or sold)")
	return cmd
}

func newSettlementsCmd(rc *RootConfig) *cobra.Command {
	var fromStr, calendarPath string

	cmd := &cobra.Command{
		Use:   "settlements",
		Short: "List expected settlements of active hedges",
		RunE: func(cmd *cobra.Command, args []string) error {
			from := time.Now().UTC()
			if fromStr != "" {
				t, err := time.Parse("2006-01-02", fromStr)
				if err != nil {
					return fmt.Errorf("bad --from: %w", err)
				}
				from = t
			}
			cal, err := config.LoadCalendar(calendarPath)
			if err != nil {
				return err
			}
			book, err := rc.loadBook()
			if err != nil {
				return err
			}
			return rc.print(cmd, mtm.Settlements(book.Hedges, cal, from))
		},
	}

	cmd.Flags().StringVar(&fromStr, "from", "", "first settlement date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&calendarPath, "calendar", "", "holiday calendar (YAML or JSON)")
	return cmd
}

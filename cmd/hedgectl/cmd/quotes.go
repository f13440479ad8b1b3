package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hedgedesk/exposure-engine/internal/model"
	"github.com/hedgedesk/exposure-engine/internal/ranking"
	"github.com/hedgedesk/exposure-engine/internal/rfqleg"
)

type rankOutput struct {
	RfqID       string          `json:"rfq_id"`
	Ranking     ranking.Ranking `json:"ranking"`
	Best        string          `json:"best"`
	WinnerIndex int             `json:"winner_index"`
}

type previewInput struct {
	Company string              `json:"company"`
	Trades  []rfqleg.TradeInput `json:"trades"`
}

func newRankCmd(rc *RootConfig) *cobra.Command {
	var rfqID, rfqFile string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank counterparty responses of an RFQ",
		Example: `  hedgectl rank --book book.json --rfq r1
  hedgectl rank --rfq-file rfq.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rfq model.Rfq
			switch {
			case rfqFile != "":
				if err := readJSON(rfqFile, &rfq); err != nil {
					return fmt.Errorf("load rfq: %w", err)
				}
			case rfqID != "":
				book, err := rc.loadBook()
				if err != nil {
					return err
				}
				found := false
				for _, r := range book.Rfqs {
					if r.ID == rfqID {
						rfq, found = r, true
						break
					}
				}
				if !found {
					return fmt.Errorf("rfq %q not found", rfqID)
				}
			default:
				return fmt.Errorf("--rfq or --rfq-file is required")
			}

			rk := ranking.RankRfq(rfq)
			return rc.print(cmd, rankOutput{
				RfqID:       rfq.ID,
				Ranking:     rk,
				Best:        rk.BestDisplay(),
				WinnerIndex: rk.WinnerIndex(rfq),
			})
		},
	}

	cmd.Flags().StringVar(&rfqID, "rfq", "", "RFQ id inside the book")
	cmd.Flags().StringVar(&rfqFile, "rfq-file", "", "standalone RFQ JSON file")
	return cmd
}

func newValidateLegsCmd(rc *RootConfig) *cobra.Command {
	var file, company string

	cmd := &cobra.Command{
		Use:   "validate-legs",
		Short: "Validate an RFQ trade form and print the leg payloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			var in previewInput
			if err := readJSON(file, &in); err != nil {
				return fmt.Errorf("load trades: %w", err)
			}
			if company != "" {
				in.Company = company
			}
			trades, err := rfqleg.BuildTrades(in.Trades, in.Company)
			if err != nil {
				return err
			}
			return rc.print(cmd, trades)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "trade form JSON ({company, trades}) (required)")
	cmd.Flags().StringVar(&company, "company", "", "override the company label")
	cmd.MarkFlagRequired("file")
	return cmd
}

package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/BerylCAtieno/invoice-chat-api/internal/config"
	"github.com/BerylCAtieno/invoice-chat-api/internal/ledger"
	"github.com/BerylCAtieno/invoice-chat-api/internal/pricing"
	"github.com/BerylCAtieno/invoice-chat-api/internal/repository"
	"github.com/spf13/cobra"
)

func usageCmd(cfg *config.Config) *cobra.Command {
	var (
		userID string
		months int
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show token usage and cost for a user",
		Long: `Show the model calls recorded for a user over the last months,
including runs whose document was rejected and never saved.

Examples:
  invoicectl usage --user 6f1c0e2a
  invoicectl usage --user 6f1c0e2a --months 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if months <= 0 {
				return fmt.Errorf("--months must be positive")
			}

			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			table, err := pricing.Load(cfg.PricingFile)
			if err != nil {
				return err
			}
			l := ledger.New(repository.NewUsageRepository(database), pricing.NewCalculator(table))

			since := time.Now().UTC().AddDate(0, -months, 0)
			rows, err := l.ByUser(cmd.Context(), userID, since)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tINVOICE\tOPERATION\tMODEL\tTOKENS\tCOST")
			for _, r := range rows {
				invoice := "(not saved)"
				if r.InvoiceNumber != nil {
					invoice = *r.InvoiceNumber
				}
				cost := "-"
				if r.Cost != nil {
					cost = r.Cost.StringFixed(6) + " " + r.CostUnit
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
					r.CreatedAt.Format(time.DateTime), invoice, r.OperationType, r.ModelUsed, r.TotalTokens, cost)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			s := ledger.Summarize(rows)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\nInvoices: %d  Tokens: %d  Cost: %s %s\n", s.TotalInvoices, s.TotalTokens, s.TotalCost.StringFixed(6), s.CostUnit)
			fmt.Fprintf(out, "Per invoice: %.0f tokens, %s %s\n", s.AverageTokensPerInvoice, s.AverageCostPerInvoice.StringFixed(6), s.CostUnit)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "user id to report on")
	cmd.Flags().IntVarP(&months, "months", "m", 3, "how many months back to report")
	cmd.MarkFlagRequired("user")

	return cmd
}

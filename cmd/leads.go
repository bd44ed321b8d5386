package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
)

var (
	leadsStatus        string
	leadsTrustStatus   string
	leadsIncludeHidden bool
	leadsLimit         int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads with their trust scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			Status:        model.LeadStatus(leadsStatus),
			TrustStatus:   model.TrustStatus(leadsTrustStatus),
			IncludeHidden: leadsIncludeHidden,
			Limit:         leadsLimit,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%-36s %-20s %-10s %5s %5s %-12s %s\n",
			"ID", "NAME", "STATUS", "RULE", "FINAL", "TRUST", "OVERRIDE")
		for _, l := range leads {
			override := "-"
			if l.HasOverride() {
				override = fmt.Sprintf("%d (%s)", *l.OverrideScore, l.OverrideBy)
			}
			fmt.Printf("%-36s %-20s %-10s %5d %5d %-12s %s\n",
				l.ID, l.Name(), l.Status, l.RuleScore, l.FinalScore, l.TrustStatus, override)
		}
		fmt.Printf("\n%d lead(s)\n", len(leads))
		return nil
	},
}

func init() {
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "filter by lifecycle status")
	leadsCmd.Flags().StringVar(&leadsTrustStatus, "trust-status", "", "filter by trust status")
	leadsCmd.Flags().BoolVar(&leadsIncludeHidden, "include-hidden", false, "include risky_hidden leads")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 0, "maximum rows (0 = no limit)")
	rootCmd.AddCommand(leadsCmd)
}

package main

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/carebridge/leadtrust/internal/resilience"
	"github.com/carebridge/leadtrust/internal/store"
	"github.com/carebridge/leadtrust/internal/trust"
)

var recalcAll bool

var recalcCmd = &cobra.Command{
	Use:   "recalc [lead-id]",
	Short: "Recalculate trust scores",
	Long:  "Reruns the rule evaluation for one lead, or for every lead with --all. Each pass appends one ledger event per lead.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("recalc"); err != nil {
			return err
		}
		if !recalcAll && len(args) == 0 {
			return eris.New("a lead id or --all is required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		svc := trust.NewService(st)

		if !recalcAll {
			res, err := svc.Recalculate(ctx, args[0], "cli")
			if err != nil {
				return err
			}
			zap.L().Info("recalculated",
				zap.String("lead_id", res.LeadID),
				zap.String("run_id", res.RunID),
				zap.Int("final_score", res.FinalScore),
				zap.Int("delta", res.Delta),
				zap.String("trust_status", string(res.TrustStatus)),
			)
			return nil
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{IncludeHidden: true})
		if err != nil {
			return err
		}

		var changed atomic.Int64
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(cfg.Scoring.MaxConcurrentLeads)

		retryCfg := resilience.DefaultRetryConfig()
		for _, lead := range leads {
			g.Go(func() error {
				err := resilience.Do(gctx, retryCfg, func(ctx context.Context) error {
					res, err := svc.Recalculate(ctx, lead.ID, "cli")
					if err != nil {
						return err
					}
					if res.Delta != 0 {
						changed.Add(1)
					}
					return nil
				})
				return eris.Wrapf(err, "recalc lead %s", lead.ID)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("bulk recalculation complete",
			zap.Int("leads", len(leads)),
			zap.Int64("changed", changed.Load()),
		)
		return nil
	},
}

func init() {
	recalcCmd.Flags().BoolVar(&recalcAll, "all", false, "recalculate every lead")
	rootCmd.AddCommand(recalcCmd)
}

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/carebridge/leadtrust/internal/db"
	"github.com/carebridge/leadtrust/internal/ingest"
	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
	"github.com/carebridge/leadtrust/internal/trust"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-import leads from a CSV or XLSX file",
	Long:  "Reads a file with email, phone, first_name, display_name and locale columns, scores each lead against the current rule catalog, and inserts them. Uses COPY on postgres.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("import"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rules, err := st.ListRules(ctx, model.RuleScopeLead, true)
		if err != nil {
			return err
		}

		tbl, err := ingest.Open(importFilePath)
		if err != nil {
			return err
		}
		leads, err := parseLeads(tbl, rules)
		if err != nil {
			return err
		}

		var created int64
		if pg, ok := st.(*store.PostgresStore); ok {
			created, err = copyLeads(ctx, pg, leads)
		} else {
			for _, lead := range leads {
				if _, cerr := st.CreateLead(ctx, lead); cerr != nil {
					err = cerr
					break
				}
				created++
			}
		}
		if err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.Int64("created", created),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

// parseLeads turns table rows into scored leads using the given rule
// catalog. Unknown columns are ignored.
func parseLeads(tbl *ingest.Table, rules []model.Rule) ([]model.Lead, error) {
	var leads []model.Lead
	for i, row := range tbl.Rows {
		line := i + 2 // 1-based, after the header

		lead := model.Lead{
			Email:       tbl.Field(row, "email"),
			Phone:       tbl.Field(row, "phone"),
			FirstName:   tbl.Field(row, "first_name"),
			DisplayName: tbl.Field(row, "display_name"),
			Status:      model.LeadStatusNew,
		}
		if lead.Email == "" && lead.Phone == "" && lead.FirstName == "" && lead.DisplayName == "" {
			return nil, eris.Errorf("line %d has no identifying fields", line)
		}
		if raw := tbl.Field(row, "locale"); raw != "" {
			tag, err := language.Parse(raw)
			if err != nil {
				return nil, eris.Errorf("line %d: invalid locale %q", line, raw)
			}
			lead.Locale = tag.String()
		}

		eval := trust.Evaluate(lead, 0, rules)
		res := trust.Resolve(eval.RuleScore, nil)
		lead.RuleScore = eval.RuleScore
		lead.FinalScore = res.FinalScore
		lead.TrustStatus = res.TrustStatus

		leads = append(leads, lead)
	}
	return leads, nil
}

// copyLeads loads leads through the COPY protocol.
func copyLeads(ctx context.Context, pg *store.PostgresStore, leads []model.Lead) (int64, error) {
	columns := []string{
		"id", "email", "phone", "first_name", "display_name", "locale", "status",
		"rule_score", "final_score", "trust_status", "created_at", "updated_at",
	}
	rows := make([][]any, 0, len(leads))
	now := time.Now().UTC()
	for _, l := range leads {
		rows = append(rows, []any{
			uuid.New().String(), l.Email, l.Phone, l.FirstName, l.DisplayName, l.Locale, string(l.Status),
			l.RuleScore, l.FinalScore, string(l.TrustStatus), now, now,
		})
	}
	return db.CopyFrom(ctx, pg.Pool(), "leads", columns, rows)
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

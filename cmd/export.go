package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/carebridge/leadtrust/internal/model"
	"github.com/carebridge/leadtrust/internal/store"
)

var exportOut string

var exportHeader = []string{
	"id", "email", "phone", "name", "locale", "status",
	"rule_score", "final_score", "trust_status",
	"override_score", "override_by", "created_at",
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all leads to XLSX or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("export"); err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, store.LeadFilter{IncludeHidden: true})
		if err != nil {
			return err
		}

		switch {
		case strings.HasSuffix(exportOut, ".xlsx"):
			err = writeXLSX(exportOut, leads)
		case strings.HasSuffix(exportOut, ".csv"):
			err = writeCSV(exportOut, leads)
		default:
			return eris.Errorf("unsupported export format: %s", exportOut)
		}
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.Int("leads", len(leads)),
			zap.String("out", exportOut),
		)
		return nil
	},
}

func exportRow(l model.Lead) []string {
	override := ""
	if l.HasOverride() {
		override = fmt.Sprintf("%d", *l.OverrideScore)
	}
	return []string{
		l.ID, l.Email, l.Phone, l.Name(), l.Locale, string(l.Status),
		fmt.Sprintf("%d", l.RuleScore), fmt.Sprintf("%d", l.FinalScore), string(l.TrustStatus),
		override, l.OverrideBy, l.CreatedAt.Format(time.RFC3339),
	}
}

func writeXLSX(path string, leads []model.Lead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	row := sheet.AddRow()
	for _, h := range exportHeader {
		row.AddCell().Value = h
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, v := range exportRow(l) {
			row.AddCell().Value = v
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save xlsx")
	}
	return nil
}

func writeCSV(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(exportHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, l := range leads {
		if err := w.Write(exportRow(l)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "leads.xlsx", "output path (.xlsx or .csv)")
	rootCmd.AddCommand(exportCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/carebridge/leadtrust/internal/model"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and edit the trust rule catalog",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rules in evaluation order",
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

		rules, err := st.ListRules(ctx, model.RuleScopeLead, false)
		if err != nil {
			return err
		}

		fmt.Printf("%-4s %-20s %6s %-8s\n", "POS", "CODE", "DELTA", "ACTIVE")
		for _, r := range rules {
			fmt.Printf("%-4d %-20s %+6d %-8t\n", r.Position, r.Code, r.Delta, r.Active)
		}
		return nil
	},
}

var (
	ruleDelta  int
	ruleActive bool
)

var rulesSetCmd = &cobra.Command{
	Use:   "set <code>",
	Short: "Update a rule's delta and active flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		if !cmd.Flags().Changed("delta") {
			return eris.New("--delta is required")
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.UpdateRule(ctx, args[0], ruleDelta, ruleActive); err != nil {
			return err
		}
		zap.L().Info("rule updated",
			zap.String("code", args[0]),
			zap.Int("delta", ruleDelta),
			zap.Bool("active", ruleActive),
		)
		return nil
	},
}

var rulesSeedFile string

var rulesSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the rule catalog from a YAML file or the built-in defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}

		rules := model.DefaultRules()
		if rulesSeedFile != "" {
			data, err := os.ReadFile(rulesSeedFile)
			if err != nil {
				return eris.Wrap(err, "read rules file")
			}
			rules, err = parseRulesYAML(data)
			if err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SeedRules(ctx, rules); err != nil {
			return err
		}
		zap.L().Info("rule catalog seeded", zap.Int("rules", len(rules)))
		return nil
	},
}

// parseRulesYAML decodes a rules file and fills in scope and position
// from declaration order when omitted.
func parseRulesYAML(data []byte) ([]model.Rule, error) {
	var doc struct {
		Rules []model.Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse rules yaml")
	}
	if len(doc.Rules) == 0 {
		return nil, eris.New("rules file contains no rules")
	}

	for i := range doc.Rules {
		if doc.Rules[i].Code == "" {
			return nil, eris.Errorf("rule %d has no code", i)
		}
		if doc.Rules[i].Scope == "" {
			doc.Rules[i].Scope = model.RuleScopeLead
		}
		if doc.Rules[i].Position == 0 {
			doc.Rules[i].Position = i
		}
	}
	return doc.Rules, nil
}

func init() {
	rulesSetCmd.Flags().IntVar(&ruleDelta, "delta", 0, "signed point delta")
	rulesSetCmd.Flags().BoolVar(&ruleActive, "active", true, "whether the rule is evaluated")
	rulesSeedCmd.Flags().StringVar(&rulesSeedFile, "file", "", "YAML rules file (defaults to built-in catalog)")

	rulesCmd.AddCommand(rulesListCmd, rulesSetCmd, rulesSeedCmd)
	rootCmd.AddCommand(rulesCmd)
}

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/railsup-labs/railsup-cli/internal/rules"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect the detection rule set",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active detection rules",
	RunE:  runRulesList,
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a rule set file",
	Long: `Parses and compiles a TOML rule set file without installing it.
Reports the rule set version and rule count on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runRulesValidate,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rootCmd.AddCommand(rulesCmd)
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	if ruleStore == nil {
		return errors.New("rule store not configured")
	}

	rs := ruleStore.RuleSet()
	cmd.Printf("Rule set %s (%d rules)\n\n", rs.Version, len(rs.Rules))
	for _, r := range rs.Rules {
		cmd.Printf("  %-36s %-12s %.2f\n", r.ID, r.Category, r.Confidence)
	}
	return nil
}

func runRulesValidate(cmd *cobra.Command, args []string) error {
	store, err := rules.NewStore(args[0])
	if err != nil {
		return fmt.Errorf("invalid rule set: %w", err)
	}
	defer store.Close() //nolint:errcheck

	rs := store.RuleSet()
	cmd.Printf("OK: rule set %s, %d rules\n", rs.Version, len(rs.Rules))
	return nil
}

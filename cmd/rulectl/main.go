package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/automation"
	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/frostdev-ops/adpilot-backend-go/pkg/version"
	"github.com/spf13/cobra"
)

type evaluateOptions struct {
	campaignsFile string
	derived       map[string]string
	output        string
}

// matchView is the dry-run result for one fired rule and campaign pair
type matchView struct {
	RuleID       string   `json:"rule_id"`
	RuleName     string   `json:"rule_name"`
	CampaignID   string   `json:"campaign_id"`
	CampaignName string   `json:"campaign_name"`
	Actions      []string `json:"actions"`
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "rulectl",
		Short:        "Validate and dry-run AdPilot automation rules",
		SilenceUsage: true,
	}
	root.AddCommand(newValidateCmd(), newEvaluateCmd(), newVersionCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a YAML or JSON rule file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func newEvaluateCmd() *cobra.Command {
	opts := &evaluateOptions{}
	cmd := &cobra.Command{
		Use:   "evaluate FILE",
		Short: "Show which campaigns each rule would fire on, without executing actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluate(cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.campaignsFile, "campaigns", "", "JSON file holding a campaign list or {\"campaigns\": [...]}")
	cmd.Flags().StringToStringVar(&opts.derived, "derived", nil, "derived metric definitions, name=expression")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "table", "output format: table or json")
	_ = cmd.MarkFlagRequired("campaigns")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func runValidate(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	rules, problems, err := automation.NewRuleParser().ValidateRuleSet(data, automation.FormatFromPath(path))
	if err != nil {
		return err
	}

	for i, rule := range rules {
		name := rule.Name
		if name == "" {
			name = fmt.Sprintf("rules[%d]", i)
		}
		if perr, bad := problems[i]; bad {
			fmt.Fprintf(out, "FAIL  %s: %v\n", name, perr)
			continue
		}
		fmt.Fprintf(out, "ok    %s\n", name)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%d of %d rules are invalid", len(problems), len(rules))
	}
	fmt.Fprintf(out, "%d rules valid\n", len(rules))
	return nil
}

func runEvaluate(out io.Writer, path string, opts *evaluateOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	rules, problems, err := automation.NewRuleParser().ValidateRuleSet(data, automation.FormatFromPath(path))
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("%d of %d rules are invalid, run validate for details", len(problems), len(rules))
	}

	list, err := readCampaigns(opts.campaignsFile)
	if err != nil {
		return err
	}

	derived, err := automation.NewDerivedMetrics(opts.derived)
	if err != nil {
		return err
	}
	conditions := automation.NewConditionEvaluator(derived)
	evaluator := automation.NewRuleEvaluator(conditions)

	var unknown []string
	for _, rule := range rules {
		for _, cond := range rule.Conditions {
			if !conditions.KnownMetric(cond.Metric) {
				unknown = append(unknown, fmt.Sprintf("%s (%s)", cond.Metric, rule.Name))
			}
		}
	}

	matches := evaluator.Evaluate(rules, list)
	views := make([]matchView, 0, len(matches))
	for _, m := range matches {
		actions := make([]string, 0, len(m.Rule.Actions))
		for _, a := range m.Rule.Actions {
			actions = append(actions, string(a.Kind()))
		}
		views = append(views, matchView{
			RuleID:       m.Rule.ID,
			RuleName:     m.Rule.Name,
			CampaignID:   m.Campaign.ID,
			CampaignName: m.Campaign.Name,
			Actions:      actions,
		})
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].RuleName != views[j].RuleName {
			return views[i].RuleName < views[j].RuleName
		}
		return views[i].CampaignID < views[j].CampaignID
	})

	switch opts.output {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case "table", "":
	default:
		return fmt.Errorf("unsupported output format %q", opts.output)
	}

	if len(unknown) > 0 {
		fmt.Fprintf(out, "warning: unknown metrics never match: %s\n", strings.Join(unknown, ", "))
	}
	if len(views) == 0 {
		fmt.Fprintf(out, "No rules fired across %d campaigns\n", len(list))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tCAMPAIGN\tACTIONS")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", v.RuleName, v.CampaignID, strings.Join(v.Actions, ","))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rule/campaign pairs would fire across %d campaigns\n", len(views), len(list))
	return nil
}

func readCampaigns(path string) ([]campaigns.Campaign, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []campaigns.Campaign
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse campaigns: %w", err)
		}
		return list, nil
	}

	var wrapped struct {
		Campaigns []campaigns.Campaign `json:"campaigns"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse campaigns: %w", err)
	}
	return wrapped.Campaigns, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

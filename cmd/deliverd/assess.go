package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/deliverd/internal/risk"
	"github.com/fyrsmithlabs/deliverd/internal/rules"
)

var (
	assessNow   string
	assessRules string
)

var assessCmd = &cobra.Command{
	Use:   "assess [file]",
	Short: "Run a one-shot delay risk assessment",
	Long: `Assess a project snapshot (YAML) for schedule risk and print the
detection plus any compensation recommendation as JSON.

Examples:
  # Assess a snapshot file
  deliverd assess project.yaml

  # Assess from stdin with a fixed reference time
  cat project.yaml | deliverd assess - --now 2026-08-01T00:00:00Z`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVar(&assessNow, "now", "", "reference time (RFC3339), defaults to the current time")
	assessCmd.Flags().StringVar(&assessRules, "rules", "", "rules file overriding the compensation tiers")
}

func runAssess(cmd *cobra.Command, args []string) error {
	var (
		content []byte
		err     error
	)
	if args[0] == "-" {
		content, err = io.ReadAll(cmd.InOrStdin())
	} else {
		content, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	var cfg risk.Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if cfg.ProjectID == "" {
		return fmt.Errorf("snapshot: project_id is required")
	}

	now := time.Now().UTC()
	if assessNow != "" {
		now, err = time.Parse(time.RFC3339, assessNow)
		if err != nil {
			return fmt.Errorf("parse --now: %w", err)
		}
	}

	tiers := risk.DefaultCompensationTiers()
	if assessRules != "" {
		set, err := rules.LoadFile(assessRules)
		if err != nil {
			return err
		}
		tiers = set.CompensationTiers
	}

	detection := risk.DetectDelay(cfg, now)
	plan := risk.CalculateCompensationWith(tiers, detection.DaysOverdue, detection.DelayReasons)

	out, err := json.MarshalIndent(struct {
		Detection    risk.Detection         `json:"detection"`
		Compensation *risk.CompensationPlan `json:"compensation,omitempty"`
	}{detection, plan}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

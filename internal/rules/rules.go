// Package rules loads operator-editable rule tables (error patterns,
// strategy chains, compensation tiers) from a YAML file and hot-reloads
// them on change.
package rules

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/fyrsmithlabs/deliverd/internal/errclass"
	"github.com/fyrsmithlabs/deliverd/internal/fixtree"
	"github.com/fyrsmithlabs/deliverd/internal/risk"
)

const maxRulesFileSize = 1024 * 1024 // 1MB

// Set is one consistent snapshot of the rule tables. Any section left empty
// in the file keeps its built-in default, so a rules file can override just
// the part an operator cares about.
type Set struct {
	Patterns          []errclass.PatternRule  `koanf:"patterns"`
	Chains            fixtree.Chains          `koanf:"chains"`
	CompensationTiers []risk.CompensationTier `koanf:"compensation_tiers"`
}

// Default returns the built-in rule set.
func Default() *Set {
	return &Set{
		Patterns:          errclass.DefaultRules(),
		Chains:            fixtree.DefaultChains(),
		CompensationTiers: risk.DefaultCompensationTiers(),
	}
}

// Parse decodes YAML content into a Set, filling omitted sections from the
// defaults and validating the result.
func Parse(content []byte) (*Set, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}

	set := &Set{}
	if err := k.Unmarshal("", set); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}

	defaults := Default()
	if len(set.Patterns) == 0 {
		set.Patterns = defaults.Patterns
	}
	if len(set.Chains) == 0 {
		set.Chains = defaults.Chains
	}
	if len(set.CompensationTiers) == 0 {
		set.CompensationTiers = defaults.CompensationTiers
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// LoadFile reads and parses a rules file.
func LoadFile(path string) (*Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rules file: %w", err)
	}
	if info.Size() > maxRulesFileSize {
		return nil, fmt.Errorf("rules file too large: %d bytes (max %d)", info.Size(), maxRulesFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(content)
}

// Validate checks the loaded tables make sense together.
func (s *Set) Validate() error {
	for i, p := range s.Patterns {
		if p.Kind == "" {
			return fmt.Errorf("rules: pattern %d: kind is required", i)
		}
		if len(p.Codes) == 0 && len(p.Substrings) == 0 {
			return fmt.Errorf("rules: pattern %d (%s): needs at least one code or substring", i, p.Kind)
		}
	}
	if err := s.Chains.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	for i, t := range s.CompensationTiers {
		if t.MinDelayDays < 1 {
			return fmt.Errorf("rules: compensation tier %d: min_delay_days must be >= 1", i)
		}
		if t.Plan.Type == "" {
			return fmt.Errorf("rules: compensation tier %d: plan type is required", i)
		}
	}
	return nil
}

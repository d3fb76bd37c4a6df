package aat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// specFile mirrors the on-disk YAML shape for one AAT definition. Field
// names match the spec.md §3 AAT data model so declarative specs read the
// same as the written spec.
type specFile struct {
	ID          string `yaml:"id"`
	ActionSpace struct {
		Allowed []struct {
			Type               string `yaml:"type"`
			RequiresCapability string `yaml:"requiresCapability"`
		} `yaml:"allowed"`
		Forbidden []struct {
			Type      string `yaml:"type"`
			Rationale string `yaml:"rationale"`
		} `yaml:"forbidden"`
	} `yaml:"actionSpace"`
	BehavioralInvariants []struct {
		ID                   string `yaml:"id"`
		Enforcement          string `yaml:"enforcement"`
		RequiredOutputAction string `yaml:"requiredOutputAction"`
	} `yaml:"behavioralInvariants"`
	Parallelization *struct {
		Parallelizable        bool     `yaml:"parallelizable"`
		MaxConcurrent         int      `yaml:"maxConcurrent"`
		RequiresIsolation     bool     `yaml:"requiresIsolation"`
		ConflictsWith         []string `yaml:"conflictsWith"`
		PreferredEnclaveScope string   `yaml:"preferredEnclaveScope"`
	} `yaml:"parallelization"`
}

// LoadDir reads every *.yaml/*.yml file in dir as one AAT declarative spec
// and registers it. It is the one-time startup load described in spec.md
// §4.1 ("Loads AAT definitions at startup from a directory of declarative
// specs").
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("aat: read dir %s: %w", dir, err)
	}
	reg := NewRegistry()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		path := filepath.Join(dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("aat: read %s: %w", path, err)
		}
		var sf specFile
		if err := yaml.Unmarshal(raw, &sf); err != nil {
			return nil, fmt.Errorf("aat: parse %s: %w", path, err)
		}
		a, err := fromSpecFile(sf)
		if err != nil {
			return nil, fmt.Errorf("aat: %s: %w", path, err)
		}
		reg.Add(a)
	}
	return reg, nil
}

func fromSpecFile(sf specFile) (*AAT, error) {
	if sf.ID == "" {
		return nil, fmt.Errorf("missing id")
	}
	a := &AAT{ID: sf.ID}
	for _, allowed := range sf.ActionSpace.Allowed {
		a.ActionSpace.Allowed = append(a.ActionSpace.Allowed, AllowedAction{
			Type:               ActionType(allowed.Type),
			RequiresCapability: allowed.RequiresCapability,
		})
	}
	for _, forbidden := range sf.ActionSpace.Forbidden {
		a.ActionSpace.Forbidden = append(a.ActionSpace.Forbidden, ForbiddenAction{
			Type:      ActionType(forbidden.Type),
			Rationale: forbidden.Rationale,
		})
	}
	for _, inv := range sf.BehavioralInvariants {
		a.BehavioralInvariants = append(a.BehavioralInvariants, BehavioralInvariant{
			ID:                   inv.ID,
			Enforcement:          Enforcement(inv.Enforcement),
			RequiredOutputAction: ActionType(inv.RequiredOutputAction),
		})
	}
	if sf.Parallelization != nil {
		a.Parallelization = &ParallelizationRules{
			Parallelizable:        sf.Parallelization.Parallelizable,
			MaxConcurrent:         sf.Parallelization.MaxConcurrent,
			RequiresIsolation:     sf.Parallelization.RequiresIsolation,
			ConflictsWith:         sf.Parallelization.ConflictsWith,
			PreferredEnclaveScope: sf.Parallelization.PreferredEnclaveScope,
		}
	}
	return a, nil
}

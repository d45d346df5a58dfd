package core

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ParseConfig parses YAML (or JSON) content into a CampaignConfig
func ParseConfig(data []byte) (*CampaignConfig, error) {
	var cfg CampaignConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	var raw struct {
		Case map[string]any `yaml:"case"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	cfg.Case.Parameters = raw.Case

	if cfg.Case.Type == "" {
		return nil, fmt.Errorf("case.type is required")
	}
	if err := validateNodes(cfg.Variation, "variation"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateNodes(nodes []VariationNode, path string) error {
	for i, n := range nodes {
		at := fmt.Sprintf("%s[%d]", path, i)
		if n.Operation == "" {
			return fmt.Errorf("%s: operation is required", at)
		}
		if err := validateNodes(n.Variation, at+".variation"); err != nil {
			return err
		}
	}
	return nil
}

// LoadConfig reads a campaign file and returns a CampaignConfig
func LoadConfig(path string) (*CampaignConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	// origin is relative to the campaign file
	if cfg.Case.Origin != "" && !filepath.IsAbs(cfg.Case.Origin) {
		cfg.Case.Origin = filepath.Join(filepath.Dir(path), cfg.Case.Origin)
		cfg.Case.Parameters["origin"] = cfg.Case.Origin
	}
	return cfg, nil
}

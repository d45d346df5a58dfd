package core

// CampaignConfig is the declarative description of a parameter study.
type CampaignConfig struct {
	Case      CaseConfig      `yaml:"case" json:"case"`
	Variation []VariationNode `yaml:"variation" json:"variation"`
}

// CaseConfig describes the base case every variant is derived from.
type CaseConfig struct {
	Type      string   `yaml:"type" json:"type"`
	Origin    string   `yaml:"origin,omitempty" json:"origin,omitempty"` // directory copied into the base job
	Solver    string   `yaml:"solver,omitempty" json:"solver,omitempty"` // solver application, e.g. simpleFoam
	PreBuild  []string `yaml:"pre_build,omitempty" json:"pre_build,omitempty"`
	PostBuild []string `yaml:"post_build,omitempty" json:"post_build,omitempty"`

	// Parameters holds the whole case section as written, stored on the base job.
	Parameters map[string]any `yaml:"-" json:"-"`
}

// VariationNode varies one key (or a schema of keys) over a list of values.
// Nodes with nested Variation produce intermediate jobs and recurse.
type VariationNode struct {
	Operation  string          `yaml:"operation" json:"operation"`
	Key        string          `yaml:"key,omitempty" json:"key,omitempty"`
	Values     []any           `yaml:"values" json:"values"`
	Parent     map[string]any  `yaml:"parent,omitempty" json:"parent,omitempty"`
	Variation  []VariationNode `yaml:"variation,omitempty" json:"variation,omitempty"`
	Schema     string          `yaml:"schema,omitempty" json:"schema,omitempty"`
	Parameters any             `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	PreBuild   []string        `yaml:"pre_build,omitempty" json:"pre_build,omitempty"`
	PostBuild  []string        `yaml:"post_build,omitempty" json:"post_build,omitempty"`
}

// HasChild reports whether the node produces intermediate jobs.
func (n VariationNode) HasChild() bool {
	return len(n.Variation) > 0
}

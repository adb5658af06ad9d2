package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SourceSeed is one entry of the source priority seed file. Lower priority
// wins during canonicalization.
type SourceSeed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Kind     string `yaml:"kind"`
	Priority int    `yaml:"priority"`
}

// LoadSourceSeeds reads the priority seed file. A missing file is not an
// error: sources then get created on first fetch with the unset sentinel.
func LoadSourceSeeds(path string) ([]SourceSeed, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "config: read source seeds %s", path)
	}

	var doc struct {
		Sources []SourceSeed `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "config: parse source seeds %s", path)
	}

	for i, s := range doc.Sources {
		if s.Name == "" {
			return nil, eris.Errorf("config: source seed %d has no name", i)
		}
	}
	return doc.Sources, nil
}

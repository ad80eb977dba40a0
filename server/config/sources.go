package config

import (
	"os"
	"strconv"

	"github.com/gear6io/dataagent/pkg/errors"
	"github.com/gear6io/dataagent/server/types"
	"gopkg.in/yaml.v3"
)

// sourceEntry is one value under the top-level `sources` mapping
type sourceEntry struct {
	Type        string         `yaml:"type"`
	Config      map[string]any `yaml:"config"`
	Description string         `yaml:"description"`
}

// LoadSourcesFile reads a declarative sources document:
//
//	sources:
//	  sales:
//	    type: csv
//	    config: {path: ./data/sales.csv}
//	    description: Daily sales
//
// Entries are returned in document order. A missing file yields no entries.
// Entries that do not decode keep an empty Type so the registry rejects and
// reports them individually instead of aborting the whole load.
func LoadSourcesFile(path string) ([]types.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(ErrSourcesFileReadFailed, "failed to read sources file", err).AddContext("path", path)
	}
	return ParseSources(data)
}

// ParseSources parses a sources document held in memory
func ParseSources(data []byte) ([]types.SourceConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(ErrSourcesFileParseFailed, "failed to parse sources file", err)
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New(ErrSourcesFileMalformed, "sources document must be a mapping", nil)
	}

	var sources *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == "sources" {
			sources = root.Content[i+1]
			break
		}
	}
	if sources == nil || sources.Tag == "!!null" {
		return nil, nil
	}
	if sources.Kind != yaml.MappingNode {
		return nil, errors.New(ErrSourcesFileMalformed, "'sources' must map names to definitions", nil).
			AddContext("line", strconv.Itoa(sources.Line))
	}

	configs := make([]types.SourceConfig, 0, len(sources.Content)/2)
	for i := 0; i+1 < len(sources.Content); i += 2 {
		name := sources.Content[i].Value
		cfg := types.SourceConfig{Name: name}

		var entry sourceEntry
		if err := sources.Content[i+1].Decode(&entry); err == nil {
			cfg.Type = types.SourceType(entry.Type)
			cfg.Config = entry.Config
			cfg.Description = entry.Description
		}
		if cfg.Config == nil {
			cfg.Config = map[string]any{}
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

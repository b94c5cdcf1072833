package types

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// StringList decodes either a scalar string or a sequence of strings.
type StringList []string

// UnmarshalYAML accepts `enrich: la_code` as well as `enrich: [la_code, year]`.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Value == "" {
			*s = nil
			return nil
		}
		*s = StringList{value.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*s = items
		return nil
	default:
		return fmt.Errorf("line %d: expected string or list of strings", value.Line)
	}
}

// Contains reports whether v is in the list.
func (s StringList) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// ColumnConfig describes how one archived column is typed, keyed and transformed.
type ColumnConfig struct {
	ID        string     `yaml:"id" json:"id"`
	Type      ColumnType `yaml:"type,omitempty" json:"type,omitempty"`
	UniqueKey bool       `yaml:"unique_key,omitempty" json:"uniqueKey,omitempty"`
	Enrich    StringList `yaml:"enrich,omitempty" json:"enrich,omitempty"`
	Degrade   string     `yaml:"degrade,omitempty" json:"degrade,omitempty"`
	Sort      int        `yaml:"sort,omitempty" json:"sort,omitempty"` // 0 = not a sort key
	Exclude   StringList `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// TableConfig is the pipeline-level description of an output table.
type TableConfig struct {
	ID      string         `yaml:"id" json:"id"`
	Retain  StringList     `yaml:"retain,omitempty" json:"retain,omitempty"`
	Columns []ColumnConfig `yaml:"columns" json:"columns"`
}

// ColumnIDs returns the configured column ids in config order.
func (t TableConfig) ColumnIDs() []string {
	ids := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		ids[i] = c.ID
	}
	return ids
}

// Column returns the column config with the given id.
func (t TableConfig) Column(id string) (ColumnConfig, bool) {
	for _, c := range t.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return ColumnConfig{}, false
}

// UniqueKeys returns the ids of columns that participate in deduplication.
func (t TableConfig) UniqueKeys() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.UniqueKey {
			keys = append(keys, c.ID)
		}
	}
	return keys
}

// SortKeys returns the ids of sort columns, ordered by ascending sort priority.
func (t TableConfig) SortKeys() []string {
	var cols []ColumnConfig
	for _, c := range t.Columns {
		if c.Sort > 0 {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return cols[i].Sort < cols[j].Sort })
	keys := make([]string, len(cols))
	for i, c := range cols {
		keys[i] = c.ID
	}
	return keys
}

// PipelineConfig lists the tables a dataset persists to the archive.
type PipelineConfig struct {
	TableList []TableConfig `yaml:"table_list" json:"tableList"`
}

// Table returns the table config with the given id.
func (p *PipelineConfig) Table(id string) (TableConfig, bool) {
	for _, t := range p.TableList {
		if t.ID == id {
			return t, true
		}
	}
	return TableConfig{}, false
}

// TableIDs returns the configured table ids in config order.
func (p *PipelineConfig) TableIDs() []string {
	ids := make([]string, len(p.TableList))
	for i, t := range p.TableList {
		ids[i] = t.ID
	}
	return ids
}

// Profiles returns every profile tag mentioned by a retain list, sorted.
func (p *PipelineConfig) Profiles() []string {
	seen := make(map[string]bool)
	for _, t := range p.TableList {
		for _, r := range t.Retain {
			seen[r] = true
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// TelemetryConfig configures OpenTelemetry export. An empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty"`
	ServiceName string `yaml:"serviceName,omitempty"`
}

// AWSConfig holds settings shared by the S3 filesystem and the secrets lookup.
type AWSConfig struct {
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // e.g. a localstack URL
}

// ProjectConfig represents the top-level liia.yaml configuration.
type ProjectConfig struct {
	Source        string          `yaml:"source"`
	Output        string          `yaml:"output"`
	Archive       string          `yaml:"archive,omitempty"` // defaults to <output>/archive
	Datasets      []string        `yaml:"datasets"`
	Authority     string          `yaml:"authority,omitempty"`
	Profiles      []string        `yaml:"profiles,omitempty"` // defaults to every retain tag
	CombineMode   CombineMode     `yaml:"combineMode,omitempty"`
	MinYear       int             `yaml:"minYear,omitempty"`
	HashSecretEnv string          `yaml:"hashSecretEnv,omitempty"`
	HashSecretID  string          `yaml:"hashSecretId,omitempty"`
	Log           LogConfig       `yaml:"log,omitempty"`
	Telemetry     TelemetryConfig `yaml:"telemetry,omitempty"`
	AWS           AWSConfig       `yaml:"aws,omitempty"`
	Alerts        []AlertConfig   `yaml:"alerts,omitempty"`
}

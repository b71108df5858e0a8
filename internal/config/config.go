// Package config provides configuration structures and loading for goseed.
package config

// Config represents the complete application configuration.
type Config struct {
	Source        DatabaseConfig        `yaml:"source" mapstructure:"source"`
	Dump          DumpConfig            `yaml:"dump" mapstructure:"dump"`
	Catalog       CatalogConfig         `yaml:"catalog" mapstructure:"catalog"`
	IgnoreColumns []IgnoreColumnsConfig `yaml:"ignore_columns" mapstructure:"ignore_columns"`
	Transforms    []TransformConfig     `yaml:"transforms" mapstructure:"transforms"`
	Roots         []RootConfig          `yaml:"roots" mapstructure:"roots"`
	Logging       LoggingConfig         `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents the source database connection.
type DatabaseConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"` // mysql, postgres, sqlite
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	Schema             string `yaml:"schema" mapstructure:"schema"` // postgres only, defaults to public
	Path               string `yaml:"path" mapstructure:"path"`     // sqlite only
	TLS                string `yaml:"tls" mapstructure:"tls"`       // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// DumpConfig holds the global traversal and output settings.
type DumpConfig struct {
	Output          string `yaml:"output" mapstructure:"output"`                       // file path or "-" for stdout
	BatchSize       int    `yaml:"batch_size" mapstructure:"batch_size"`               // rows per fetched page
	InsertBatchSize int    `yaml:"insert_batch_size" mapstructure:"insert_batch_size"` // tuples per INSERT statement
	Spool           string `yaml:"spool" mapstructure:"spool"`                         // memory or file
	Unscoped        bool   `yaml:"unscoped" mapstructure:"unscoped"`
	DontNullify     bool   `yaml:"dont_nullify" mapstructure:"dont_nullify"`
	Verbose         bool   `yaml:"verbose" mapstructure:"verbose"`
	VerboseSQL      bool   `yaml:"verbose_sql" mapstructure:"verbose_sql"`
	Verify          bool   `yaml:"verify" mapstructure:"verify"`
}

// CatalogConfig declares models and associations, optionally on top of the
// foreign keys reflected from the source database.
type CatalogConfig struct {
	Introspect bool          `yaml:"introspect" mapstructure:"introspect"`
	Models     []ModelConfig `yaml:"models" mapstructure:"models"`
}

// ModelConfig declares one model. Models are listed rather than keyed by name
// because viper lower-cases map keys.
type ModelConfig struct {
	Name         string           `yaml:"name" mapstructure:"name"`
	Table        string           `yaml:"table" mapstructure:"table"`
	Singular     string           `yaml:"singular" mapstructure:"singular"`
	PrimaryKey   string           `yaml:"primary_key" mapstructure:"primary_key"` // "-" for none
	DefaultScope string           `yaml:"default_scope" mapstructure:"default_scope"`
	Columns      []ColumnConfig   `yaml:"columns" mapstructure:"columns"`
	BelongsTo    []RelationConfig `yaml:"belongs_to" mapstructure:"belongs_to"`
	HasMany      []RelationConfig `yaml:"has_many" mapstructure:"has_many"`
	HasOne       []RelationConfig `yaml:"has_one" mapstructure:"has_one"`
}

// ColumnConfig declares a column and its database type.
type ColumnConfig struct {
	Name     string `yaml:"name" mapstructure:"name"`
	Type     string `yaml:"type" mapstructure:"type"`
	Nullable bool   `yaml:"nullable" mapstructure:"nullable"`
}

// RelationConfig declares one association of a model.
type RelationConfig struct {
	Name        string                    `yaml:"name" mapstructure:"name"`
	Model       string                    `yaml:"model" mapstructure:"model"`
	ForeignKey  string                    `yaml:"foreign_key" mapstructure:"foreign_key"`
	PrimaryKey  string                    `yaml:"primary_key" mapstructure:"primary_key"`
	InverseOf   string                    `yaml:"inverse_of" mapstructure:"inverse_of"`
	Polymorphic bool                      `yaml:"polymorphic" mapstructure:"polymorphic"` // belongs_to only
	ForeignType string                    `yaml:"foreign_type" mapstructure:"foreign_type"`
	As          string                    `yaml:"as" mapstructure:"as"` // has_* side of a polymorphic belongs_to
	Targets     []PolymorphicTargetConfig `yaml:"targets" mapstructure:"targets"`
	Scope       string                    `yaml:"scope" mapstructure:"scope"`
	Order       string                    `yaml:"order" mapstructure:"order"`
	Optional    bool                      `yaml:"optional" mapstructure:"optional"`
}

// PolymorphicTargetConfig maps a value of the type column to a model.
type PolymorphicTargetConfig struct {
	Type  string `yaml:"type" mapstructure:"type"`
	Model string `yaml:"model" mapstructure:"model"`
}

// IgnoreColumnsConfig lists columns left out of both the select and the dump.
type IgnoreColumnsConfig struct {
	Model   string   `yaml:"model" mapstructure:"model"`
	Columns []string `yaml:"columns" mapstructure:"columns"`
}

// TransformConfig is one customizer registration. Exactly one of Set,
// Nullify or Anonymize is expected per entry; entries run in list order.
type TransformConfig struct {
	Model     string                 `yaml:"model" mapstructure:"model"`
	Set       map[string]interface{} `yaml:"set" mapstructure:"set"`
	Nullify   []string               `yaml:"nullify" mapstructure:"nullify"`
	Anonymize []AnonymizeConfig      `yaml:"anonymize" mapstructure:"anonymize"`
}

// AnonymizeConfig replaces one field through a named generator.
type AnonymizeConfig struct {
	Field     string `yaml:"field" mapstructure:"field"`
	Generator string `yaml:"generator" mapstructure:"generator"` // fixed, null, prefix, suffix, uuid, sha256, mask
	Value     string `yaml:"value" mapstructure:"value"`
	Keep      int    `yaml:"keep" mapstructure:"keep"`
}

// RootConfig is one starting query with its traversal rules.
type RootConfig struct {
	Model                    string                   `yaml:"model" mapstructure:"model"`
	Where                    string                   `yaml:"where" mapstructure:"where"`
	Args                     []interface{}            `yaml:"args" mapstructure:"args"`
	Limit                    int                      `yaml:"limit" mapstructure:"limit"`
	Order                    string                   `yaml:"order" mapstructure:"order"`
	TotalLimit               *int                     `yaml:"total_limit" mapstructure:"total_limit"`
	AssociationLimits        []AssociationLimitConfig `yaml:"association_limits" mapstructure:"association_limits"`
	DeepLimit                *int                     `yaml:"deep_limit" mapstructure:"deep_limit"`
	Exclude                  []interface{}            `yaml:"exclude" mapstructure:"exclude"`
	Include                  []IncludeConfig          `yaml:"include" mapstructure:"include"`
	ExcludeHasRelations      bool                     `yaml:"exclude_has_relations" mapstructure:"exclude_has_relations"`
	ExcludeOptionalBelongsTo bool                     `yaml:"exclude_optional_belongs_to" mapstructure:"exclude_optional_belongs_to"`
	DontNullify              bool                     `yaml:"dont_nullify" mapstructure:"dont_nullify"`
}

// AssociationLimitConfig caps the rows dumped under paths matching Pattern.
type AssociationLimitConfig struct {
	Pattern interface{} `yaml:"pattern" mapstructure:"pattern"`
	Limit   int         `yaml:"limit" mapstructure:"limit"`
}

// IncludeConfig re-enables matching associations, optionally narrowing them.
type IncludeConfig struct {
	Pattern interface{} `yaml:"pattern" mapstructure:"pattern"`
	Where   string      `yaml:"where" mapstructure:"where"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Source: DatabaseConfig{
			Driver:             "mysql",
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     4,
			MaxIdleConnections: 2,
		},
		Dump: DumpConfig{
			Output:          "-",
			BatchSize:       1000,
			InsertBatchSize: 1000,
			Spool:           "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// GetRoot returns the root configured for model. When a model is listed more
// than once the first entry wins.
func (c *Config) GetRoot(model string) (*RootConfig, bool) {
	for i := range c.Roots {
		if c.Roots[i].Model == model {
			return &c.Roots[i], true
		}
	}
	return nil, false
}

// IgnoredColumns returns the ignore list per model name.
func (c *Config) IgnoredColumns() map[string][]string {
	ignored := make(map[string][]string, len(c.IgnoreColumns))
	for _, ic := range c.IgnoreColumns {
		ignored[ic.Model] = append(ignored[ic.Model], ic.Columns...)
	}
	return ignored
}

// DontNullify reports whether foreign keys of excluded belongs-to targets are
// kept for this root, either globally or by the root itself.
func (c *Config) DontNullify(root *RootConfig) bool {
	return c.Dump.DontNullify || (root != nil && root.DontNullify)
}

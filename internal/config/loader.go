package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.Source.Host = expandEnvVar(cfg.Source.Host)
	cfg.Source.User = expandEnvVar(cfg.Source.User)
	cfg.Source.Password = expandEnvVar(cfg.Source.Password)
	cfg.Source.Database = expandEnvVar(cfg.Source.Database)
	cfg.Source.Path = expandEnvVar(cfg.Source.Path)

	cfg.Dump.Output = expandEnvVar(cfg.Dump.Output)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// ListRoots returns the root model names in configuration order.
func (c *Config) ListRoots() []string {
	roots := make([]string, 0, len(c.Roots))
	for _, r := range c.Roots {
		roots = append(roots, r.Model)
	}
	return roots
}

// Overrides carries CLI flag values. Zero values leave the file setting alone.
type Overrides struct {
	LogLevel   string
	LogFormat  string
	BatchSize  int
	Output     string
	Verbose    bool
	VerboseSQL bool
	Unscoped   bool
	Verify     bool
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.BatchSize > 0 {
		c.Dump.BatchSize = o.BatchSize
	}
	if o.Output != "" {
		c.Dump.Output = o.Output
	}
	if o.Verbose {
		c.Dump.Verbose = true
	}
	if o.VerboseSQL {
		c.Dump.VerboseSQL = true
	}
	if o.Unscoped {
		c.Dump.Unscoped = true
	}
	if o.Verify {
		c.Dump.Verify = true
	}
}

package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
// Model names are checked later against the catalog, which may be reflected
// from the database.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateSource()...)
	errors = append(errors, c.validateDump()...)
	errors = append(errors, c.validateCatalog()...)

	if len(c.Roots) == 0 {
		errors = append(errors, ValidationError{
			Field:   "roots",
			Message: "at least one root must be defined",
		})
	}
	for i := range c.Roots {
		errors = append(errors, c.validateRoot(i, &c.Roots[i])...)
	}

	for i, ic := range c.IgnoreColumns {
		if ic.Model == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("ignore_columns[%d].model", i),
				Message: "model is required",
			})
		}
	}

	for i := range c.Transforms {
		errors = append(errors, c.validateTransform(i, &c.Transforms[i])...)
	}

	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateSource() ValidationErrors {
	var errors ValidationErrors
	db := &c.Source

	switch strings.ToLower(db.Driver) {
	case "sqlite", "sqlite3":
		if db.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "source.path",
				Message: "path is required for sqlite",
			})
		}
	case "mysql", "mariadb", "postgres", "postgresql", "pgx":
		if db.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "source.host",
				Message: "host is required",
			})
		}
		if db.Port <= 0 || db.Port > 65535 {
			errors = append(errors, ValidationError{
				Field:   "source.port",
				Message: "port must be between 1 and 65535",
			})
		}
		if db.User == "" {
			errors = append(errors, ValidationError{
				Field:   "source.user",
				Message: "user is required",
			})
		}
		if db.Database == "" {
			errors = append(errors, ValidationError{
				Field:   "source.database",
				Message: "database name is required",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "source.driver",
			Message: "driver must be 'mysql', 'postgres', or 'sqlite'",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "source.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "source.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "source.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateDump() ValidationErrors {
	var errors ValidationErrors

	if c.Dump.BatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dump.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Dump.InsertBatchSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "dump.insert_batch_size",
			Message: "insert_batch_size must be positive",
		})
	}

	validSpool := map[string]bool{"memory": true, "file": true, "": true}
	if !validSpool[c.Dump.Spool] {
		errors = append(errors, ValidationError{
			Field:   "dump.spool",
			Message: "spool must be 'memory' or 'file'",
		})
	}

	return errors
}

func (c *Config) validateCatalog() ValidationErrors {
	var errors ValidationErrors

	seen := make(map[string]bool)
	for i, m := range c.Catalog.Models {
		prefix := fmt.Sprintf("catalog.models[%d]", i)
		if m.Name == "" {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: "name is required",
			})
			continue
		}
		if seen[m.Name] {
			errors = append(errors, ValidationError{
				Field:   prefix + ".name",
				Message: fmt.Sprintf("model %q is declared twice", m.Name),
			})
		}
		seen[m.Name] = true

		for j, rel := range m.BelongsTo {
			errors = append(errors, validateRelation(fmt.Sprintf("%s.belongs_to[%d]", prefix, j), &rel, true)...)
		}
		for j, rel := range m.HasMany {
			errors = append(errors, validateRelation(fmt.Sprintf("%s.has_many[%d]", prefix, j), &rel, false)...)
		}
		for j, rel := range m.HasOne {
			errors = append(errors, validateRelation(fmt.Sprintf("%s.has_one[%d]", prefix, j), &rel, false)...)
		}
	}

	return errors
}

func validateRelation(prefix string, rel *RelationConfig, belongsTo bool) ValidationErrors {
	var errors ValidationErrors

	if rel.Name == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".name",
			Message: "name is required",
		})
	}
	if strings.Contains(rel.Name, ".") {
		errors = append(errors, ValidationError{
			Field:   prefix + ".name",
			Message: "name cannot contain '.'",
		})
	}

	if rel.Polymorphic {
		if !belongsTo {
			errors = append(errors, ValidationError{
				Field:   prefix + ".polymorphic",
				Message: "polymorphic applies to belongs_to only, use 'as' on has_many/has_one",
			})
		}
		if len(rel.Targets) == 0 {
			errors = append(errors, ValidationError{
				Field:   prefix + ".targets",
				Message: "polymorphic belongs_to needs at least one target",
			})
		}
		for k, tgt := range rel.Targets {
			if tgt.Type == "" || tgt.Model == "" {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s.targets[%d]", prefix, k),
					Message: "type and model are required",
				})
			}
		}
	}

	return errors
}

func (c *Config) validateRoot(i int, root *RootConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("roots[%d]", i)

	if root.Model == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".model",
			Message: "model is required",
		})
	}

	if root.Limit < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".limit",
			Message: "limit cannot be negative",
		})
	}

	if root.TotalLimit != nil && *root.TotalLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".total_limit",
			Message: "total_limit cannot be negative",
		})
	}

	if root.DeepLimit != nil && *root.DeepLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".deep_limit",
			Message: "deep_limit cannot be negative",
		})
	}

	for j, al := range root.AssociationLimits {
		if al.Pattern == nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.association_limits[%d].pattern", prefix, j),
				Message: "pattern is required",
			})
		}
		if al.Limit < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.association_limits[%d].limit", prefix, j),
				Message: "limit cannot be negative",
			})
		}
	}

	for j, inc := range root.Include {
		if inc.Pattern == nil {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.include[%d].pattern", prefix, j),
				Message: "pattern is required",
			})
		}
	}

	return errors
}

func (c *Config) validateTransform(i int, tr *TransformConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("transforms[%d]", i)

	if tr.Model == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".model",
			Message: "model is required",
		})
	}

	if len(tr.Set) == 0 && len(tr.Nullify) == 0 && len(tr.Anonymize) == 0 {
		errors = append(errors, ValidationError{
			Field:   prefix,
			Message: "one of set, nullify or anonymize is required",
		})
	}

	for j, an := range tr.Anonymize {
		if an.Field == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.anonymize[%d].field", prefix, j),
				Message: "field is required",
			})
		}
		if an.Generator == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.anonymize[%d].generator", prefix, j),
				Message: "generator is required",
			})
		}
		if an.Keep < 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.anonymize[%d].keep", prefix, j),
				Message: "keep cannot be negative",
			})
		}
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}

// Package dialect provides identifier quoting, placeholders and SQL literal
// encoding for the databases goseed reads from.
package dialect

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedValue is returned when a value has no literal form in the dialect.
var ErrUnsupportedValue = errors.New("unsupported value")

// Dialect is the value encoder and quoting layer for one database flavour.
type Dialect interface {
	// Name is the canonical dialect name: mysql, postgres or sqlite.
	Name() string
	// DriverName is the database/sql driver name registered for the dialect.
	DriverName() string
	// QuoteIdentifier quotes a table or column name.
	QuoteIdentifier(name string) string
	// Placeholder returns the bind placeholder for the n-th (1-based) argument.
	Placeholder(n int) string
	// Encode renders value as a SQL literal for a column of type dbType.
	Encode(dbType string, value interface{}) (string, error)
}

// For returns the dialect registered under name.
func For(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (must be mysql, postgres or sqlite)", name)
	}
}

// validIdentifierRegex restricts identifiers to alphanumerics and underscores.
var validIdentifierRegex = regexp.MustCompile("^[a-zA-Z0-9_]+$")

// IsValidIdentifier checks that a name only contains alphanumeric characters and underscores.
func IsValidIdentifier(name string) bool {
	return validIdentifierRegex.MatchString(name)
}

// InvalidIdentifierError is returned when an identifier contains invalid characters.
type InvalidIdentifierError struct {
	Name string
}

func (e *InvalidIdentifierError) Error() string {
	return "invalid identifier: " + e.Name + " (must contain only alphanumeric characters and underscores)"
}

// QuoteIdentifierSafe quotes a name after validating it.
func QuoteIdentifierSafe(d Dialect, name string) (string, error) {
	if !IsValidIdentifier(name) {
		return "", &InvalidIdentifierError{Name: name}
	}
	return d.QuoteIdentifier(name), nil
}

// Placeholders returns count placeholders starting at argument number start.
func Placeholders(d Dialect, start, count int) string {
	ph := make([]string, count)
	for i := range ph {
		ph[i] = d.Placeholder(start + i)
	}
	return strings.Join(ph, ", ")
}

// literals holds the per-dialect spellings used by encode.
type literals struct {
	trueLit, falseLit string
	quote             func(string) (string, error)
	binary            func([]byte) string
	timestamp         func(dbType string, t time.Time) string
	allowNonFinite    bool
}

func encode(l literals, dbType string, value interface{}) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if v {
			return l.trueLit, nil
		}
		return l.falseLit, nil
	case int:
		return strconv.FormatInt(int64(v), 10), nil
	case int8:
		return strconv.FormatInt(int64(v), 10), nil
	case int16:
		return strconv.FormatInt(int64(v), 10), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case uint:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(v), 10), nil
	case uint64:
		return strconv.FormatUint(v, 10), nil
	case float32:
		return encodeFloat(l, float64(v), 32)
	case float64:
		return encodeFloat(l, v, 64)
	case string:
		return l.quote(v)
	case []byte:
		if v == nil {
			return "NULL", nil
		}
		if IsBinaryType(dbType) {
			return l.binary(v), nil
		}
		return l.quote(string(v))
	case time.Time:
		return l.timestamp(dbType, v), nil
	case driver.Valuer:
		inner, err := v.Value()
		if err != nil {
			return "", fmt.Errorf("value of type %T: %w", value, err)
		}
		if _, loops := inner.(driver.Valuer); loops {
			return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
		}
		return encode(l, dbType, inner)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

func encodeFloat(l literals, f float64, bits int) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		if !l.allowNonFinite {
			return "", fmt.Errorf("%w: non-finite float %v", ErrUnsupportedValue, f)
		}
		return l.quote(strconv.FormatFloat(f, 'g', -1, bits))
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

// IsBinaryType reports whether a declared column type stores raw bytes.
func IsBinaryType(dbType string) bool {
	t := strings.ToLower(dbType)
	return strings.Contains(t, "blob") || strings.Contains(t, "binary") || t == "bytea"
}

// IsIntegerType reports whether a declared column type stores integers.
func IsIntegerType(dbType string) bool {
	t := strings.ToLower(dbType)
	return strings.Contains(t, "int") && !strings.Contains(t, "interval") && !strings.Contains(t, "point")
}

// IsDateType reports whether a declared column type stores a date without time.
func IsDateType(dbType string) bool {
	return strings.ToLower(strings.TrimSpace(dbType)) == "date"
}

func hexLiteral(prefix, suffix string, b []byte) string {
	return prefix + hex.EncodeToString(b) + suffix
}

func formatTime(dbType string, t time.Time, withZone bool) string {
	if IsDateType(dbType) {
		return t.Format("2006-01-02")
	}
	if withZone {
		return t.Format("2006-01-02 15:04:05.999999-07:00")
	}
	return t.Format("2006-01-02 15:04:05.999999")
}

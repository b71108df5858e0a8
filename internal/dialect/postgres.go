package dialect

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Postgres assumes standard_conforming_strings, the default since 9.1.
type Postgres struct{}

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) Encode(dbType string, value interface{}) (string, error) {
	return encode(literals{
		trueLit:  "TRUE",
		falseLit: "FALSE",
		quote: func(s string) (string, error) {
			if strings.ContainsRune(s, 0) {
				return "", fmt.Errorf("%w: NUL byte in text value", ErrUnsupportedValue)
			}
			return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
		},
		binary: func(b []byte) string { return hexLiteral(`'\x`, "'::bytea", b) },
		timestamp: func(dbType string, t time.Time) string {
			zoned := strings.Contains(strings.ToLower(dbType), "tz") ||
				strings.Contains(strings.ToLower(dbType), "with time zone")
			return "'" + formatTime(dbType, t, zoned) + "'"
		},
		allowNonFinite: true,
	}, dbType, value)
}

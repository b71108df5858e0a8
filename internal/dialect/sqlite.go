package dialect

import (
	"strings"
	"time"
)

// SQLite has no boolean type; booleans are written as 1 and 0.
type SQLite struct{}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

func (SQLite) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) Encode(dbType string, value interface{}) (string, error) {
	return encode(literals{
		trueLit:  "1",
		falseLit: "0",
		quote: func(s string) (string, error) {
			return "'" + strings.ReplaceAll(s, "'", "''") + "'", nil
		},
		binary: func(b []byte) string { return hexLiteral("X'", "'", b) },
		timestamp: func(dbType string, t time.Time) string {
			return "'" + formatTime(dbType, t, false) + "'"
		},
	}, dbType, value)
}

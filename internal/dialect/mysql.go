package dialect

import (
	"strings"
	"time"
)

// MySQL quotes identifiers with backticks and escapes backslashes in strings.
type MySQL struct{}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier with backticks, doubling any
// backtick inside the name.
// Example: "my`table" -> "`my``table`"
func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MySQL) Placeholder(int) string { return "?" }

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `''`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

func (MySQL) Encode(dbType string, value interface{}) (string, error) {
	return encode(literals{
		trueLit:  "TRUE",
		falseLit: "FALSE",
		quote: func(s string) (string, error) {
			return "'" + mysqlEscaper.Replace(s) + "'", nil
		},
		binary: func(b []byte) string { return hexLiteral("X'", "'", b) },
		timestamp: func(dbType string, t time.Time) string {
			return "'" + formatTime(dbType, t, false) + "'"
		},
	}, dbType, value)
}

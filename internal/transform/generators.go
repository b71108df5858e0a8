package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/dbsmedya/goseed/internal/config"
)

// Generator computes the replacement of a field from its current value.
type Generator func(current interface{}) (interface{}, error)

// Fixed always yields v.
func Fixed(v interface{}) Generator {
	return func(interface{}) (interface{}, error) { return v, nil }
}

// Null always yields NULL.
func Null() Generator {
	return Fixed(nil)
}

// Prefix prepends s to the current text. NULL stays NULL.
func Prefix(s string) Generator {
	return textGenerator(func(cur string) string { return s + cur })
}

// Suffix appends s to the current text. NULL stays NULL.
func Suffix(s string) Generator {
	return textGenerator(func(cur string) string { return cur + s })
}

// UUID yields a random version 4 UUID.
func UUID() Generator {
	return func(interface{}) (interface{}, error) { return uuid.NewString(), nil }
}

// SHA256 yields the hex digest of the current text. NULL stays NULL.
func SHA256() Generator {
	return textGenerator(func(cur string) string {
		sum := sha256.Sum256([]byte(cur))
		return hex.EncodeToString(sum[:])
	})
}

// Mask keeps the first keep runes and replaces the rest with '*'.
func Mask(keep int) Generator {
	return textGenerator(func(cur string) string {
		n := utf8.RuneCountInString(cur)
		if n <= keep {
			return cur
		}
		var b strings.Builder
		i := 0
		for _, r := range cur {
			if i < keep {
				b.WriteRune(r)
			} else {
				b.WriteByte('*')
			}
			i++
		}
		return b.String()
	})
}

func textGenerator(fn func(string) string) Generator {
	return func(current interface{}) (interface{}, error) {
		if current == nil {
			return nil, nil
		}
		return fn(text(current)), nil
	}
}

func text(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

// NewGenerator returns the generator described by an anonymize entry.
func NewGenerator(a config.AnonymizeConfig) (Generator, error) {
	switch strings.ToLower(a.Generator) {
	case "fixed":
		return Fixed(a.Value), nil
	case "null":
		return Null(), nil
	case "prefix":
		return Prefix(a.Value), nil
	case "suffix":
		return Suffix(a.Value), nil
	case "uuid":
		return UUID(), nil
	case "sha256":
		return SHA256(), nil
	case "mask":
		return Mask(a.Keep), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGenerator, a.Generator)
	}
}

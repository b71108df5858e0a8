package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteTable_AlignsWideCharacters(t *testing.T) {
	var buf bytes.Buffer
	writeTable(&buf, []string{"NAME", "ROWS"}, [][]string{
		{"users", "10"},
		{"用户", "3"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"  NAME   ROWS",
		"  -----  ----",
		"  users  10",
		"  用户   3",
	}, lines)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "id = 1", truncate("id  =\n 1", 20))
	assert.Equal(t, "created_...", truncate("created_at > now() - interval 1 day", 11))
}

func TestPrintHeaderAndSection(t *testing.T) {
	var buf bytes.Buffer
	printHeader(&buf, "Plan: %s", "x")
	printSection(&buf, "Roots")
	assert.Equal(t, "===========\n  Plan: x\n===========\n[Roots]\n-------\n", buf.String())
}

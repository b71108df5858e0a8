package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/goseed/internal/dumper"
	"github.com/dbsmedya/goseed/internal/schema"
)

func TestRunPlan(t *testing.T) {
	f := newFixture(t, "")
	out := useFixture(t, f)

	require.NoError(t, runPlan(planCmd, nil))

	got := out.String()
	assert.Contains(t, got, "Dump Plan")
	assert.Contains(t, got, "[Root Author]")
	assert.Contains(t, got, "WHERE: id = 1")
	assert.Contains(t, got, "  author (authors)\n")
	assert.Contains(t, got, "  └── books → Book (books, has_many) [traverse] limitable\n")
	assert.Contains(t, got, "      ├── author → Author (authors, belongs_to) [inverse] limitable\n")
	assert.Contains(t, got, "      └── reviews → Review (reviews, has_many) [traverse] limitable\n")

	assert.Contains(t, got, "  [1] authors\n")
	assert.Contains(t, got, "  [2] books <- authors\n")
	assert.Contains(t, got, "  [3] reviews <- books\n")
	assert.Contains(t, got, "• authors → books (required) FK: author_id")
	assert.NotContains(t, got, "Foreign key cycle")
}

func TestPrintPlanTree(t *testing.T) {
	nodes := []*dumper.PlanNode{
		{
			Path: "forum.parent", Model: "Forum", Table: "forums", Kind: schema.BelongsTo,
			Status: "excluded", Nullifies: "parent_id",
		},
		{
			Path: "forum.children", Model: "Forum", Table: "forums", Kind: schema.HasMany,
			Status: dumper.StatusRepeat, Limitable: true,
			Children: []*dumper.PlanNode{
				{Path: "forum.children.users", Model: "User", Table: "users", Kind: schema.HasMany, Status: "depth"},
			},
		},
	}

	var buf bytes.Buffer
	printPlanTree(&buf, nodes, "")

	want := "├── parent → Forum (forums, belongs_to) [excluded] nulls parent_id\n" +
		"└── children → Forum (forums, has_many) [repeat] limitable\n" +
		"    └── users → User (users, has_many) [depth]\n"
	assert.Equal(t, want, buf.String())
}

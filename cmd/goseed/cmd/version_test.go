package cmd

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunVersion(t *testing.T) {
	c, out := testCommand()
	runVersion(c, nil)

	got := out.String()
	assert.Contains(t, got, "goseed version "+Version)
	assert.Contains(t, got, "Commit: "+Commit)
	assert.Contains(t, got, "Go version: "+runtime.Version())
	assert.Contains(t, got, runtime.GOOS+"/"+runtime.GOARCH)
}

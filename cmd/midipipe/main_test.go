package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootCmdRegistersEveryVerb(t *testing.T) {
	root := newRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, names, []string{"import", "import-archives", "analyze-pending", "export-pattern", "serve"})
}

func TestImportCmdRejectsMissingArgs(t *testing.T) {
	cmd := newImportCmd()
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"some-dir"}))
}

func TestExportPatternCmdRequiresTwoArgs(t *testing.T) {
	cmd := newExportPatternCmd()
	assert.Error(t, cmd.Args(cmd, []string{"only-one.mid"}))
	assert.NoError(t, cmd.Args(cmd, []string{"in.mid", "out.json"}))
}

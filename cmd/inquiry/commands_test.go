package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aretw0/inquiry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Equal(t, "inquiry version "+strings.TrimSpace(inquiry.Version)+"\n", out)
}

func TestGraphCommand(t *testing.T) {
	out := execute(t, "graph")
	assert.True(t, strings.HasPrefix(out, "graph TD"), out)
	assert.Contains(t, out, "HumanReview")
}

package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestRenderer_Plain(t *testing.T) {
	r := NewRenderer(true)

	got := r.Message(domain.Message{Role: domain.RoleAssistant, Author: "Planning", Content: "next: Search"})
	assert.Equal(t, "### Planning\n\nnext: Search\n", got)

	got = r.Message(domain.Message{Role: domain.RoleUser, Content: "hi"})
	assert.Contains(t, got, "### user")
}

func TestRenderer_Artifacts(t *testing.T) {
	r := NewRenderer(true)
	state := domain.NewState("s1", "topic")
	assert.Empty(t, r.Artifacts(state))

	state.CodeArtifacts["b.py"] = "second"
	state.CodeArtifacts["a.py"] = "first"
	got := r.Artifacts(state)
	assert.Contains(t, got, "**Code**")
	assert.Less(t, bytes.Index([]byte(got), []byte("a.py")), bytes.Index([]byte(got), []byte("b.py")))
	assert.NotContains(t, got, "**Search**")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")
	assert.Contains(t, buf.String(), "research pipeline v1.2.3")
}

package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// Renderer turns trace messages into terminal output.
type Renderer struct {
	render func(string) (string, error)
}

// NewRenderer returns a renderer that formats markdown with glamour.
// When plain is set, or glamour cannot be initialized, markdown is printed as is.
func NewRenderer(plain bool) *Renderer {
	if plain {
		return &Renderer{render: passthrough}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Automatically detect light/dark background
	)
	if err != nil {
		return &Renderer{render: passthrough}
	}
	return &Renderer{render: r.Render}
}

func passthrough(markdown string) (string, error) {
	return markdown + "\n", nil
}

// Markdown renders a markdown document.
func (r *Renderer) Markdown(markdown string) string {
	out, err := r.render(markdown)
	if err != nil {
		return markdown + "\n"
	}
	return out
}

// Message renders one trace entry under a heading naming its author.
func (r *Renderer) Message(m domain.Message) string {
	author := m.Author
	if author == "" {
		author = string(m.Role)
	}
	return r.Markdown(fmt.Sprintf("### %s\n\n%s", author, m.Content))
}

// Artifacts renders every artifact map of a state as a bullet list.
func (r *Renderer) Artifacts(state *domain.State) string {
	groups := []struct {
		title string
		items domain.Artifacts
	}{
		{"Search", state.SearchArtifacts},
		{"Code", state.CodeArtifacts},
		{"Visualization", state.VizArtifacts},
		{"Report", state.ReportArtifacts},
	}

	var b strings.Builder
	for _, g := range groups {
		if len(g.items) == 0 {
			continue
		}
		keys := make([]string, 0, len(g.items))
		for k := range g.items {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintf(&b, "**%s**\n\n", g.title)
		for _, k := range keys {
			fmt.Fprintf(&b, "- `%s`: %s\n", k, g.items[k])
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return ""
	}
	return r.Markdown(b.String())
}

package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/inquiry/internal/routing"
	"github.com/aretw0/inquiry/pkg/domain"
)

// GraphOverlay contains dynamic session data to visualize on the graph.
type GraphOverlay struct {
	VisitedSteps []domain.StepID
	CurrentStep  domain.StepID
}

// OverlayFor derives the overlay of a session: every step that authored a message is
// visited, and the step the session runs or waits on next is current.
func OverlayFor(state *domain.State) *GraphOverlay {
	if state == nil {
		return nil
	}
	overlay := &GraphOverlay{CurrentStep: state.NextStep}
	for _, m := range state.Messages {
		if id, ok := domain.ParseStepID(m.Author); ok {
			overlay.VisitedSteps = append(overlay.VisitedSteps, id)
		}
	}
	if state.LastActiveStep != "" {
		overlay.VisitedSteps = append(overlay.VisitedSteps, state.LastActiveStep)
	}
	return overlay
}

// GenerateMermaid produces a Mermaid flowchart syntax string from the pipeline topology.
// It applies semantic styling:
// - END: ((Circle))
// - Human decision: [/Parallelogram/]
// - Worker: [[Subroutine]]
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(edges []routing.Edge, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	declared := make(map[domain.StepID]bool)
	declare := func(id domain.StepID) {
		if declared[id] {
			return
		}
		declared[id] = true

		opener, closer := "[", "]"
		switch {
		case id.IsTerminal():
			opener, closer = "((", "))"
		case id.IsHuman():
			opener, closer = "[/", "/]"
		case id.IsWorker():
			opener, closer = "[[", "]]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", sanitizeMermaidID(id), opener, id, closer))
	}

	for _, e := range edges {
		declare(e.From)
		declare(e.To)
	}
	for _, e := range edges {
		arrow := "-->"
		if e.From.IsHuman() {
			// Decisions are taken outside the engine.
			arrow = "-.->"
		}
		if e.Label != "" {
			safeLabel := strings.ReplaceAll(e.Label, "\"", "'")
			arrow = fmt.Sprintf("-- \"%s\" -->", safeLabel)
			if e.From.IsHuman() {
				arrow = fmt.Sprintf("-. \"%s\" .->", safeLabel)
			}
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeMermaidID(e.From), arrow, sanitizeMermaidID(e.To)))
	}

	// Apply Overlay Styles
	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			if !declared[id] {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !visitedSet[safeID] {
				visitedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}

		if overlay.CurrentStep != "" && declared[overlay.CurrentStep] {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id domain.StepID) string {
	s := strings.ReplaceAll(id.String(), ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

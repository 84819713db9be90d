package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
)

// Mask replaces every redacted match.
const Mask = "***"

type piiMiddleware struct {
	next     ports.CheckpointStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that redacts text matching the patterns before it
// reaches the store: message content, artifact descriptions, the hypothesis, instructions
// and quality feedback. The engine's in-memory state is never modified.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.CheckpointStore) ports.CheckpointStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Put(ctx context.Context, sessionID string, state *domain.State) error {
	cloned := state.Clone()

	for i := range cloned.Messages {
		cloned.Messages[i].Content = m.mask(cloned.Messages[i].Content)
	}
	for _, artifacts := range []domain.Artifacts{
		cloned.SearchArtifacts,
		cloned.VizArtifacts,
		cloned.CodeArtifacts,
		cloned.ReportArtifacts,
	} {
		for k, v := range artifacts {
			artifacts[k] = m.mask(v)
		}
	}
	cloned.Hypothesis = m.mask(cloned.Hypothesis)
	cloned.CurrentInstruction = m.mask(cloned.CurrentInstruction)
	cloned.QualityFeedback = m.mask(cloned.QualityFeedback)

	return m.next.Put(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Get(ctx context.Context, sessionID string) (*domain.State, error) {
	return m.next.Get(ctx, sessionID)
}

func (m *piiMiddleware) NextStep(ctx context.Context, sessionID string) (domain.StepID, error) {
	return m.next.NextStep(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func (m *piiMiddleware) mask(s string) string {
	for _, p := range m.patterns {
		s = p.ReplaceAllString(s, Mask)
	}
	return s
}

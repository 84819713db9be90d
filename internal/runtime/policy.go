package runtime

import (
	"sort"

	"github.com/aretw0/inquiry/pkg/domain"
)

// writePolicy is the set of update keys a step may write.
type writePolicy map[string]bool

func allow(keys ...string) writePolicy {
	p := writePolicy{domain.KeyMessages: true}
	for _, k := range keys {
		p[k] = true
	}
	return p
}

func defaultWritePolicies() map[domain.StepID]writePolicy {
	return map[domain.StepID]writePolicy{
		domain.StepHypothesis: allow(domain.KeyHypothesis, domain.KeyCurrentInstruction),
		domain.StepPlanning: allow(
			domain.KeyNextStepHint,
			domain.KeyCurrentInstruction,
			domain.KeyTodoList,
			domain.KeyCompletedTasks,
		),
		domain.StepSearch:        allow(domain.KeySearchArtifacts, domain.KeyCompletedTasks),
		domain.StepCoder:         allow(domain.KeyCodeArtifacts, domain.KeyCompletedTasks),
		domain.StepVisualization: allow(domain.KeyVizArtifacts, domain.KeyCompletedTasks),
		domain.StepReport:        allow(domain.KeyReportArtifacts, domain.KeyCompletedTasks),
		domain.StepQualityReview: allow(domain.KeyQualityFeedback, domain.KeyNeedsRevision),
		domain.StepCompression: allow(
			domain.KeyReplaceMessages,
			domain.KeyHypothesis,
			domain.KeyCurrentInstruction,
			domain.KeySearchArtifacts,
			domain.KeyVizArtifacts,
			domain.KeyCodeArtifacts,
			domain.KeyReportArtifacts,
			domain.KeyQualityFeedback,
			domain.KeyNeedsRevision,
		),
		domain.StepRefinement: allow(domain.KeyReportArtifacts, domain.KeyHypothesis),
	}
}

// filter returns the permitted part of raw and the sorted list of dropped keys.
func (p writePolicy) filter(raw map[string]any) (map[string]any, []string) {
	if len(raw) == 0 {
		return raw, nil
	}
	kept := make(map[string]any, len(raw))
	var dropped []string
	for k, v := range raw {
		if p[k] {
			kept[k] = v
			continue
		}
		dropped = append(dropped, k)
	}
	sort.Strings(dropped)
	return kept, dropped
}

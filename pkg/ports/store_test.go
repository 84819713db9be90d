package ports_test

import (
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/aretw0/inquiry/pkg/ports"
	"github.com/stretchr/testify/assert"
)

func TestNextStepOf(t *testing.T) {
	assert.Equal(t, domain.StepID(""), ports.NextStepOf(nil))

	s := domain.NewState("s", "x")
	s.NextStep = domain.StepCoder
	assert.Equal(t, domain.StepCoder, ports.NextStepOf(s))

	s.NextStep = domain.StepEnd
	assert.Equal(t, domain.StepID(""), ports.NextStepOf(s))

	s.NextStep = domain.StepHumanReview
	s.Status = domain.StatusCompleted
	assert.Equal(t, domain.StepID(""), ports.NextStepOf(s))
}

package notify

import (
	"testing"

	"github.com/aretw0/inquiry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_FanOut(t *testing.T) {
	b := NewBroker()
	a, cancelA := b.Subscribe("s1")
	c, cancelC := b.Subscribe("s1")
	other, cancelOther := b.Subscribe("s2")
	defer cancelOther()

	b.Publish(domain.Notification{Type: domain.NotifyStateUpdate, SessionID: "s1"})

	assert.Equal(t, domain.NotifyStateUpdate, (<-a).Type)
	assert.Equal(t, domain.NotifyStateUpdate, (<-c).Type)
	assert.Empty(t, other)

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers("s1"))

	cancelC()
	assert.Zero(t, b.Subscribers("s1"))
}

func TestBroker_SlowSubscriberKeepsDecision(t *testing.T) {
	b := NewBroker(WithBuffer(2))
	ch, cancel := b.Subscribe("s1")
	defer cancel()

	for i := 0; i < 5; i++ {
		b.Publish(domain.Notification{Type: domain.NotifyStateUpdate, SessionID: "s1"})
	}
	b.Publish(domain.Notification{Type: domain.NotifyDecisionRequired, SessionID: "s1"})

	require.Len(t, ch, 2)
	assert.Equal(t, domain.NotifyStateUpdate, (<-ch).Type)
	assert.Equal(t, domain.NotifyDecisionRequired, (<-ch).Type)
}

func TestBroker_PublishWithoutSubscribers(t *testing.T) {
	assert.NotPanics(t, func() {
		NewBroker().Publish(domain.Notification{Type: domain.NotifyRunError, SessionID: "nobody"})
	})
}

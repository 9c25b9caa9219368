package app

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternalBusFanoutSurvivesPanic(t *testing.T) {
	bus := NewInternalBus(zerolog.Nop())

	var first, second []any
	bus.Subscribe(TopicMatchFound, func(any) { panic("boom") })
	bus.Subscribe(TopicMatchFound, func(p any) { first = append(first, p) })
	bus.Subscribe(TopicMatchFound, func(p any) { second = append(second, p) })

	bus.Publish(TopicMatchFound, MatchFoundEvent{Player1ID: "p1"})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
}

func TestInternalBusUnsubscribe(t *testing.T) {
	bus := NewInternalBus(zerolog.Nop())

	calls := 0
	unsub := bus.Subscribe(TopicGameFinished, func(any) { calls++ })
	bus.Publish(TopicGameFinished, GameFinishedEvent{})
	unsub()
	unsub() // second call is harmless
	bus.Publish(TopicGameFinished, GameFinishedEvent{})

	assert.Equal(t, 1, calls)
}

func TestInternalBusDuplicateSubscriptionsFireIndependently(t *testing.T) {
	bus := NewInternalBus(zerolog.Nop())

	calls := 0
	handler := func(any) { calls++ }
	bus.Subscribe(TopicMatchFound, handler)
	bus.Subscribe(TopicMatchFound, handler)
	bus.Publish(TopicMatchFound, MatchFoundEvent{})

	assert.Equal(t, 2, calls)
}

func TestPlayerBusMonotonicIDsPerStream(t *testing.T) {
	bus := NewPlayerBus(zerolog.Nop())

	var got []GatewayEvent
	unsub := bus.Subscribe("p1", func(ev GatewayEvent) { got = append(got, ev) })
	defer unsub()

	for i := 0; i < 3; i++ {
		bus.Publish("p1", GatewayEvent{Type: EventTurnCompleted})
	}
	// Another player's stream does not disturb p1's sequence.
	bus.Publish("p2", GatewayEvent{Type: EventTurnCompleted})
	bus.Publish("p1", GatewayEvent{Type: EventRoundDealt})

	require.Len(t, got, 4)
	for i, ev := range got {
		assert.Equal(t, uint64(i+1), ev.EventID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestPlayerBusDropsWithoutSubscriber(t *testing.T) {
	bus := NewPlayerBus(zerolog.Nop())

	// No subscriber: publish is a no-op, not a retention.
	bus.Publish("ghost", GatewayEvent{Type: EventGameError})
	assert.False(t, bus.HasSubscriber("ghost"))

	got := 0
	unsub := bus.Subscribe("ghost", func(GatewayEvent) { got++ })
	bus.Publish("ghost", GatewayEvent{Type: EventGameError})
	unsub()
	bus.Publish("ghost", GatewayEvent{Type: EventGameError})

	assert.Equal(t, 1, got)
	assert.False(t, bus.HasSubscriber("ghost"))
}

func TestTimerServiceReplacesSlot(t *testing.T) {
	ts := NewTimerService(zerolog.Nop())
	defer ts.Stop()

	fired := make(chan string, 2)
	ts.StartTimeout("g1", 30*time.Millisecond, func() { fired <- "first" })
	ts.StartTimeout("g1", 15*time.Millisecond, func() { fired <- "second" })

	select {
	case got := <-fired:
		assert.Equal(t, "second", got)
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	select {
	case got := <-fired:
		t.Fatalf("replaced timer fired: %s", got)
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimerServiceCancelIsIdempotent(t *testing.T) {
	ts := NewTimerService(zerolog.Nop())
	defer ts.Stop()

	fired := make(chan struct{}, 1)
	ts.StartTimeout("g1", 20*time.Millisecond, func() { fired <- struct{}{} })
	ts.CancelTimeout("g1")
	ts.CancelTimeout("g1")

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTimerServiceSurvivesPanickingCallback(t *testing.T) {
	ts := NewTimerService(zerolog.Nop())
	defer ts.Stop()

	done := make(chan struct{}, 1)
	ts.StartTimeout("g1", 5*time.Millisecond, func() { panic("boom") })
	ts.StartTimeout("g2", 15*time.Millisecond, func() { done <- struct{}{} })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second game's timer blocked by panic")
	}
}

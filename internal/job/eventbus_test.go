package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	bus.Emit(Event{Kind: EventJobStatusChange, JobID: "job-1", Status: StatusRunning})

	select {
	case e := <-ch:
		assert.Equal(t, EventJobStatusChange, e.Kind)
		assert.Equal(t, "job-1", e.JobID)
	case <-time.After(time.Second):
		t.Fatal("expected event delivery")
	}
}

func TestEventBusUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	unsubscribe()
	unsubscribe() // idempotent, must not panic

	bus.Emit(Event{Kind: EventLibraryChange})

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestEventBusDropsWhenSubscriberBufferFull(t *testing.T) {
	bus := NewEventBus()
	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	for i := 0; i < 1000; i++ {
		bus.Emit(Event{Kind: EventJobProgress})
	}

	select {
	case _, ok := <-ch:
		require.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("expected at least one buffered event")
	}
}

func TestEventBusMultipleSubscribersIndependent(t *testing.T) {
	bus := NewEventBus()
	ch1, unsub1 := bus.Subscribe()
	ch2, unsub2 := bus.Subscribe()
	defer unsub1()
	defer unsub2()

	unsub1()
	bus.Emit(Event{Kind: EventLibraryChange})

	_, ok := <-ch1
	assert.False(t, ok)

	select {
	case e := <-ch2:
		assert.Equal(t, EventLibraryChange, e.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected ch2 to still receive events")
	}
}

package bus

import (
	"testing"
	"time"

	"github.com/envoyrun/envoy/pkg/envoy"
	"github.com/stretchr/testify/require"
)

func TestPublishWithoutSubscriberIsLost(t *testing.T) {
	b := New()
	b.Publish("s1", envoy.EventStart, nil)
	require.Equal(t, 0, b.SubscriberCount("s1"))
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("s1")
	defer unsubscribe()

	b.Publish("s1", envoy.EventStart, nil)
	b.Publish("s1", envoy.EventDelta, envoy.DeltaPayload{Content: "hi"})
	b.Publish("s1", envoy.EventDone, envoy.DonePayload{Content: "hi"})

	var got []envoy.EventKind
	for i := 0; i < 3; i++ {
		select {
		case e := <-ch:
			got = append(got, e.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	require.Equal(t, []envoy.EventKind{envoy.EventStart, envoy.EventDelta, envoy.EventDone}, got)
}

func TestTwoSubscribersReceiveSameSequence(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe("s1")
	defer unsub1()
	ch2, unsub2 := b.Subscribe("s1")
	defer unsub2()

	b.Publish("s1", envoy.EventStart, nil)
	b.Publish("s1", envoy.EventDone, envoy.DonePayload{Content: "x"})

	e1a := <-ch1
	e2a := <-ch2
	require.Equal(t, e1a.Sequence, e2a.Sequence)
	require.Equal(t, e1a.Kind, e2a.Kind)

	e1b := <-ch1
	e2b := <-ch2
	require.Equal(t, e1b.Sequence, e2b.Sequence)
	require.Equal(t, e1b.Kind, e2b.Kind)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsubscribe := b.Subscribe("s1")
	unsubscribe()
	require.Equal(t, 0, b.SubscriberCount("s1"))

	b.Publish("s1", envoy.EventStart, nil)
	_, open := <-ch
	require.False(t, open, "channel should be closed after unsubscribe")
}

func TestSlowSubscriberDoesNotBlockEmitter(t *testing.T) {
	b := New()
	_, unsubscribe := b.Subscribe("s1") // never drained
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberQueueSize*4; i++ {
			b.Publish("s1", envoy.EventDelta, envoy.DeltaPayload{Content: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("emitter blocked on a slow subscriber")
	}
}

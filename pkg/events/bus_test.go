package events

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	kind    string
	message string
}

func (e testEvent) EventType() string {
	if e.kind == "" {
		return "test.event"
	}
	return e.kind
}
func (e testEvent) Timestamp() time.Time { return time.Now() }

func receive(t *testing.T, sub <-chan Event) testEvent {
	t.Helper()
	select {
	case evt := <-sub:
		te, ok := evt.(testEvent)
		if !ok {
			t.Fatalf("expected testEvent, got %T", evt)
		}
		return te
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
	return testEvent{}
}

func expectNothing(t *testing.T, sub <-chan Event) {
	t.Helper()
	select {
	case evt := <-sub:
		t.Fatalf("expected no event, received %v", evt)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)
	sub := bus.Subscribe(10)
	bus.Start()

	if sent := bus.Publish(testEvent{message: "hello"}); sent != 1 {
		t.Errorf("expected 1 subscriber to receive event, got %d", sent)
	}
	if got := receive(t, sub); got.message != "hello" {
		t.Errorf("expected message 'hello', got '%s'", got.message)
	}
}

func TestEventBus_MultipleSubscribers(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)

	subs := make([]<-chan Event, 3)
	for i := range subs {
		subs[i] = bus.Subscribe(10)
	}
	bus.Start()

	if sent := bus.Publish(testEvent{message: "broadcast"}); sent != 3 {
		t.Errorf("expected 3 subscribers to receive event, got %d", sent)
	}
	for _, sub := range subs {
		if got := receive(t, sub); got.message != "broadcast" {
			t.Errorf("expected 'broadcast', got '%s'", got.message)
		}
	}
	if bus.Subscribers() != 3 {
		t.Errorf("expected 3 subscribers, got %d", bus.Subscribers())
	}
}

func TestEventBus_SubscribeTypes(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)
	completed := bus.SubscribeTypes(10, "transaction.completed")
	all := bus.Subscribe(10)
	bus.Start()

	bus.Publish(testEvent{kind: "transaction.started"})
	bus.Publish(testEvent{kind: "transaction.completed", message: "done"})

	if got := receive(t, completed); got.message != "done" {
		t.Errorf("expected filtered subscriber to see 'done', got '%s'", got.message)
	}
	expectNothing(t, completed)

	receive(t, all)
	receive(t, all)
}

func TestEventBus_SlowSubscriberDropsEvents(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)
	sub := bus.Subscribe(2)
	bus.Start()

	bus.Publish(testEvent{message: "1"})
	bus.Publish(testEvent{message: "2"})
	if sent := bus.Publish(testEvent{message: "3"}); sent != 0 {
		t.Errorf("expected event to be dropped, got sent=%d", sent)
	}
	if bus.Dropped() != 1 {
		t.Errorf("expected 1 dropped delivery, got %d", bus.Dropped())
	}

	<-sub
	<-sub
	expectNothing(t, sub)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)
	sub := bus.Subscribe(10)
	bus.Start()

	if !bus.Unsubscribe(sub) {
		t.Fatal("expected subscription to be removed")
	}
	if bus.Unsubscribe(sub) {
		t.Error("second unsubscribe should report false")
	}
	if _, ok := <-sub; ok {
		t.Error("expected channel to be closed")
	}
	if sent := bus.Publish(testEvent{}); sent != 0 {
		t.Errorf("expected no receivers, got %d", sent)
	}
}

func TestEventBus_ConcurrentPublish(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)
	sub := bus.Subscribe(1000)
	bus.Start()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bus.Publish(testEvent{message: fmt.Sprintf("event-%d", n)})
		}(i)
	}
	wg.Wait()

	for i := 0; i < 100; i++ {
		receive(t, sub)
	}
}

func TestEventBus_Start_ReplaysBufferedEventsInOrder(t *testing.T) {
	t.Parallel()
	bus := NewEventBus(10)

	for i := 1; i <= 3; i++ {
		if sent := bus.Publish(testEvent{message: fmt.Sprintf("event-%d", i)}); sent != 0 {
			t.Errorf("expected 0 before Start, got %d", sent)
		}
	}

	sub := bus.Subscribe(10)
	expectNothing(t, sub)

	bus.Start()
	bus.Start()

	for i := 1; i <= 3; i++ {
		want := fmt.Sprintf("event-%d", i)
		if got := receive(t, sub); got.message != want {
			t.Errorf("expected '%s', got '%s'", want, got.message)
		}
	}
	expectNothing(t, sub)
}

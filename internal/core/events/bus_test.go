package events

import (
	"errors"
	"testing"
)

type testObserver struct {
	publishCount   int
	deliveredCount int
	lastErr        error
}

func (o *testObserver) OnPublish(_ string, _ Event) {
	o.publishCount++
}

func (o *testObserver) OnDelivered(_ string, handlers int, err error, _ int64) {
	o.deliveredCount += handlers
	o.lastErr = err
}

func TestBasicPublishSubscribe(t *testing.T) {
	b := NewBus()
	var got Created
	_, err := b.Subscribe(TypeCreated, func(e Event) error {
		got = e.Data().(Created)
		return nil
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err = b.Publish(Created{ID: 7, Kind: "ball"}.Event("test")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got.ID != 7 || got.Kind != "ball" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestWildcardSubscription(t *testing.T) {
	b := NewBus()
	var types []string
	if _, err := b.Subscribe(Any, func(e Event) error {
		types = append(types, e.Type())
		return nil
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	err := b.PublishBatch(
		Created{ID: 1}.Event("test"),
		Rebuilt{ID: 1}.Event("test"),
		Destroyed{ID: 1}.Event("test"),
	)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	want := []string{TypeCreated, TypeRebuilt, TypeDestroyed}
	if len(types) != len(want) {
		t.Fatalf("got %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("got %v, want %v", types, want)
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	b := NewBus()
	calls := 0
	sub, err := b.Subscribe(TypeDestroyed, func(Event) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("sub: %v", err)
	}
	_ = b.Publish(Destroyed{ID: 1}.Event("test"))
	if err := b.Unsubscribe(sub); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	_ = sub.Cancel()
	_ = b.Publish(Destroyed{ID: 2}.Event("test"))
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if sub.IsActive() {
		t.Fatal("subscription still active")
	}
	if err := b.Unsubscribe(nil); err != nil {
		t.Fatalf("nil unsubscribe: %v", err)
	}
}

func TestObserverMetrics(t *testing.T) {
	b := NewBus()
	obs := &testObserver{}
	b.AddObserver(obs)

	boom := errors.New("boom")
	_, _ = b.Subscribe(TypeKindDefined, func(Event) error { return nil })
	_, _ = b.Subscribe(TypeKindDefined, func(Event) error { return boom })

	if err := b.Publish(KindDefined{Kind: "box"}.Event("test")); !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	m := b.Metrics()
	if m.Published != 1 || m.DeliveredHandlers != 2 || m.Errors != 1 || m.SubscribersActive != 2 {
		t.Fatalf("unexpected metrics %+v", m)
	}
	if obs.publishCount != 1 || obs.deliveredCount != 2 || !errors.Is(obs.lastErr, boom) {
		t.Fatalf("unexpected observer state %+v", obs)
	}

	b.RemoveObserver(obs)
	_ = b.Publish(KindDefined{Kind: "box"}.Event("test"))
	if b.Metrics().Published != 1 {
		t.Fatal("metrics collected without observers")
	}
}

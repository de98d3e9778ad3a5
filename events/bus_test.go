package events

import (
	"testing"
)

func TestEmitStampsMeta(t *testing.T) {
	b := NewBus("pv-1")
	var got *PageChange
	b.On(TypePageChange, func(e Event) {
		got = e.(*PageChange)
	})

	b.Emit(&PageChange{Page: 7})

	if got == nil {
		t.Fatal("handler not invoked")
	}
	if got.Page != 7 {
		t.Errorf("page = %d, want 7", got.Page)
	}
	if got.InstanceID != "pv-1" {
		t.Errorf("instance id = %q, want pv-1", got.InstanceID)
	}
	if got.Timestamp.IsZero() {
		t.Error("timestamp not stamped")
	}
}

func TestFailingListenerIsIsolated(t *testing.T) {
	b := NewBus("pv-1")
	b.On(TypeLoaded, func(Event) { panic("listener bug") })

	ran := false
	b.On(TypeLoaded, func(Event) { ran = true })

	b.Emit(&Loaded{PageCount: 10})

	if !ran {
		t.Error("panicking listener prevented the next one from running")
	}
}

func TestOff(t *testing.T) {
	b := NewBus("pv-1")
	calls := 0
	id := b.On(TypeScaleChange, func(Event) { calls++ })

	b.Emit(&ScaleChange{Scale: 1.5})
	b.Off(TypeScaleChange, id)
	b.Emit(&ScaleChange{Scale: 2.0})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestListenerCounts(t *testing.T) {
	b := NewBus("pv-1")
	b.On(TypeLoaded, func(Event) {})
	b.On(TypeLoaded, func(Event) {})
	b.On(TypeDestroyed, func(Event) {})

	if n := b.ListenerCount(TypeLoaded); n != 2 {
		t.Errorf("ListenerCount(loaded) = %d, want 2", n)
	}
	if n := b.TotalListenerCount(); n != 3 {
		t.Errorf("TotalListenerCount = %d, want 3", n)
	}

	b.RemoveAll()
	if n := b.TotalListenerCount(); n != 0 {
		t.Errorf("TotalListenerCount after RemoveAll = %d, want 0", n)
	}
}

func TestDestroyedBusDropsEverything(t *testing.T) {
	b := NewBus("pv-1")
	b.Destroy()

	called := false
	if id := b.On(TypeLoaded, func(Event) { called = true }); id != -1 {
		t.Errorf("On after Destroy returned id %d, want -1", id)
	}
	b.Emit(&Loaded{})
	if called {
		t.Error("destroyed bus delivered an event")
	}
}

func TestBusesAreIsolated(t *testing.T) {
	a := NewBus("pv-a")
	b := NewBus("pv-b")

	var hits []string
	a.On(TypePageChange, func(e Event) {
		hits = append(hits, e.EventMeta().InstanceID)
	})

	b.Emit(&PageChange{Page: 2})
	a.Emit(&PageChange{Page: 3})

	if len(hits) != 1 || hits[0] != "pv-a" {
		t.Errorf("cross-instance delivery detected: %v", hits)
	}
}

package notify

import (
	"sync"
	"testing"
	"time"
)

func mkEvent(seq uint64, scope string) ChangeEvent {
	return ChangeEvent{Seq: seq, Kind: KindUpdated, Scope: scope, OccurredAt: time.Now().UTC()}
}

func TestHub_BasicSubscribeBroadcast(t *testing.T) {
	hub := NewHub(16)

	sub := hub.Subscribe("")
	defer sub.Cancel()

	hub.Broadcast(mkEvent(1, "alpha"))

	select {
	case ev := <-sub.Events():
		if ev.Seq != 1 || ev.Scope != "alpha" {
			t.Errorf("expected (1, alpha), got (%d, %s)", ev.Seq, ev.Scope)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}
}

func TestHub_ScopeFilter(t *testing.T) {
	hub := NewHub(16)

	alpha := hub.Subscribe("alpha")
	defer alpha.Cancel()
	all := hub.Subscribe("")
	defer all.Cancel()

	hub.Broadcast(mkEvent(1, "beta"))

	select {
	case ev := <-all.Events():
		if ev.Scope != "beta" {
			t.Errorf("expected beta, got %s", ev.Scope)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for event on wildcard subscriber")
	}

	select {
	case ev := <-alpha.Events():
		t.Errorf("scoped subscriber received foreign event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ExactlyOnceInOrder(t *testing.T) {
	hub := NewHub(16)

	const subscribers = 3
	const events = 10

	subs := make([]*Subscription, subscribers)
	for i := range subs {
		subs[i] = hub.Subscribe("")
		defer subs[i].Cancel()
	}

	for seq := uint64(1); seq <= events; seq++ {
		hub.Broadcast(mkEvent(seq, "alpha"))
	}

	for i, sub := range subs {
		for want := uint64(1); want <= events; want++ {
			select {
			case ev := <-sub.Events():
				if ev.Seq != want {
					t.Fatalf("subscriber %d: expected seq %d, got %d", i, want, ev.Seq)
				}
			case <-time.After(100 * time.Millisecond):
				t.Fatalf("subscriber %d: timeout waiting for seq %d", i, want)
			}
		}
	}
}

func TestHub_DropOldestWhenFull(t *testing.T) {
	hub := NewHub(2)

	sub := hub.Subscribe("")
	defer sub.Cancel()

	// Five events into a bound of two: the three oldest are discarded
	for seq := uint64(1); seq <= 5; seq++ {
		hub.Broadcast(mkEvent(seq, "alpha"))
	}

	for _, want := range []uint64{4, 5} {
		select {
		case ev := <-sub.Events():
			if ev.Seq != want {
				t.Fatalf("expected seq %d, got %d", want, ev.Seq)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout waiting for seq %d", want)
		}
	}

	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelDuringBroadcast(t *testing.T) {
	hub := NewHub(1)

	sub := hub.Subscribe("")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for seq := uint64(1); seq <= 1000; seq++ {
			hub.Broadcast(mkEvent(seq, "alpha"))
		}
	}()
	go func() {
		defer wg.Done()
		time.Sleep(time.Millisecond)
		sub.Cancel()
	}()
	wg.Wait()

	// Channel must be closed and drained without panic
	for range sub.Events() {
	}

	if hub.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Len())
	}
}

func TestHub_CancelIdempotent(t *testing.T) {
	hub := NewHub(16)

	sub := hub.Subscribe("")
	sub.Cancel()
	sub.Cancel()

	if hub.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Len())
	}
}

func TestHub_BroadcastAfterCancelIsNoop(t *testing.T) {
	hub := NewHub(16)

	sub := hub.Subscribe("")
	sub.Cancel()

	hub.Broadcast(mkEvent(1, "alpha"))

	if _, open := <-sub.Events(); open {
		t.Fatal("expected closed channel after cancel")
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(16)

	a := hub.Subscribe("")
	b := hub.Subscribe("alpha")

	hub.Close()

	if _, open := <-a.Events(); open {
		t.Error("expected closed channel for subscriber a")
	}
	if _, open := <-b.Events(); open {
		t.Error("expected closed channel for subscriber b")
	}
	if hub.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.Len())
	}
}

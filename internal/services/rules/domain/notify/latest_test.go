package notify

import "testing"

func TestLatestKeepsNewest(t *testing.T) {
	box := NewLatest[string]()
	for _, v := range []string{"first", "second", "third"} {
		box.Offer(v)
	}
	if got := <-box.C(); got != "third" {
		t.Fatalf("pending value = %q, want third", got)
	}
	select {
	case extra := <-box.C():
		t.Fatalf("unexpected extra value %q", extra)
	default:
	}
}

func TestLatestWithNotifier(t *testing.T) {
	n := New[int](nil)
	box := NewLatest[int]()
	sub := n.Subscribe("g", box.Offer)
	defer sub.Unsubscribe()

	for i := 1; i <= 5; i++ {
		n.Publish("g", i)
	}
	if got := <-box.C(); got != 5 {
		t.Fatalf("latest = %d, want 5", got)
	}
}

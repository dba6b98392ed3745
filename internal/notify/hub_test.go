package notify

import (
	"reflect"
	"testing"
)

func TestHub_PublishInRegistrationOrder(t *testing.T) {
	var h Hub[int]
	var got []string
	h.Subscribe(func(v int) { got = append(got, "a") })
	h.Subscribe(func(v int) { got = append(got, "b") })
	h.Subscribe(func(v int) { got = append(got, "c") })

	h.Publish(1)

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("delivery order = %v, want %v", got, want)
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	var h Hub[int]
	var calls int
	cancel := h.Subscribe(func(int) { calls++ })

	h.Publish(1)
	cancel()
	cancel()
	h.Publish(2)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if h.Len() != 0 {
		t.Fatalf("Len = %d, want 0", h.Len())
	}
}

func TestHub_UnsubscribeFromCallback(t *testing.T) {
	var h Hub[int]
	var calls int
	var cancel func()
	cancel = h.Subscribe(func(int) {
		calls++
		cancel()
	})

	h.Publish(1)
	h.Publish(2)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestHub_SubscribeWithSeedsCurrentValue(t *testing.T) {
	var h Hub[int]
	current := 7
	var got []int
	h.SubscribeWith(func(v int) { got = append(got, v) }, func() int { return current })

	h.Update(func() (int, bool) {
		current = 8
		return current, true
	})
	h.Update(func() (int, bool) { return current, false })

	want := []int{7, 8}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("values = %v, want %v", got, want)
	}
}

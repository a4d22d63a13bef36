package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitChange(t *testing.T, ch <-chan Change) Change {
	t.Helper()

	select {
	case change := <-ch:
		return change
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for change")
		return Change{}
	}
}

func TestMemory_GetNotFound(t *testing.T) {
	client := NewHub().Client()

	_, err := client.Get(context.Background(), KeyOrders)
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestMemory_SetThenGet(t *testing.T) {
	hub := NewHub()
	writer := hub.Client()
	reader := hub.Client()

	if err := writer.Set(context.Background(), KeyOrders, []byte(`[]`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	value, err := reader.Get(context.Background(), KeyOrders)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if string(value) != `[]` {
		t.Fatalf("value = %q, want []", value)
	}
}

func TestMemory_SubscribeExcludesOwnWrites(t *testing.T) {
	hub := NewHub()
	writer := hub.Client()
	other := hub.Client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	writerCh, err := writer.Subscribe(ctx, KeyOrders)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}
	otherCh, err := other.Subscribe(ctx, KeyOrders)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := writer.Set(ctx, KeyOrders, []byte(`["new"]`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	change := waitChange(t, otherCh)
	if change.Key != KeyOrders || string(change.NewValue) != `["new"]` {
		t.Fatalf("unexpected change: %+v", change)
	}

	select {
	case change := <-writerCh:
		t.Fatalf("writer observed its own write: %+v", change)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemory_SubscribeFiltersKeys(t *testing.T) {
	hub := NewHub()
	writer := hub.Client()
	reader := hub.Client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := reader.Subscribe(ctx, KeyLastOrderUpdate)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := writer.Set(ctx, KeyOrders, []byte(`[]`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if err := writer.Set(ctx, KeyLastOrderUpdate, []byte(`{"id":"ORD1"}`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	change := waitChange(t, ch)
	if change.Key != KeyLastOrderUpdate {
		t.Fatalf("key = %q, want %q", change.Key, KeyLastOrderUpdate)
	}
}

func TestMemory_ChangeCarriesOldValue(t *testing.T) {
	hub := NewHub()
	writer := hub.Client()
	reader := hub.Client()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := reader.Subscribe(ctx, KeyOrders)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	if err := writer.Set(ctx, KeyOrders, []byte(`["a"]`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	first := waitChange(t, ch)
	if first.OldValue != nil {
		t.Fatalf("first change old value = %q, want nil", first.OldValue)
	}

	if err := writer.Set(ctx, KeyOrders, []byte(`["b"]`)); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	second := waitChange(t, ch)
	if string(second.OldValue) != `["a"]` || string(second.NewValue) != `["b"]` {
		t.Fatalf("unexpected change: old=%q new=%q", second.OldValue, second.NewValue)
	}
}

func TestMemory_SubscriptionClosedOnCancel(t *testing.T) {
	hub := NewHub()
	reader := hub.Client()

	ctx, cancel := context.WithCancel(context.Background())

	ch, err := reader.Subscribe(ctx, KeyOrders)
	if err != nil {
		t.Fatalf("Subscribe error: %v", err)
	}

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatalf("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after context cancel")
	}
}

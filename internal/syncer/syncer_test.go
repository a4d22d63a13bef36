package syncer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/pos-order-system/internal/model"
	"github.com/mmeshcher/pos-order-system/internal/notify"
	"github.com/mmeshcher/pos-order-system/internal/store"
)

type captureNotifier struct {
	mu            sync.Mutex
	notifications []notify.Notification
}

func (c *captureNotifier) Notify(n notify.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, n)
}

func (c *captureNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.notifications)
}

type captureSink struct {
	snapshots [][]model.Order
}

func (c *captureSink) ReplaceSnapshot(orders []model.Order) {
	c.snapshots = append(c.snapshots, orders)
}

func newTestEngine(clientID string) (*Engine, *captureNotifier, *captureSink) {
	notifier := &captureNotifier{}
	sink := &captureSink{}
	engine := New(store.NewHub().Client(), clientID, sink, notifier, zap.NewNop())
	return engine, notifier, sink
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()

	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestSnapshot_CompletedTransitionNotifiesOnce(t *testing.T) {
	engine, notifier, _ := newTestEngine("C1")

	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusActive}})

	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{{ID: "O1", Status: model.OrderStatusCompleted}}),
	})

	if notifier.count() != 1 {
		t.Fatalf("got %d notifications, want 1", notifier.count())
	}
	if notifier.notifications[0].OrderID != "O1" || notifier.notifications[0].Status != model.OrderStatusCompleted {
		t.Fatalf("unexpected notification: %+v", notifier.notifications[0])
	}
}

func TestSnapshot_ProcessingTransitionSuppressed(t *testing.T) {
	engine, notifier, _ := newTestEngine("C1")

	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusActive}})

	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{{ID: "O1", Status: model.OrderStatusProcessing}}),
	})

	if notifier.count() != 0 {
		t.Fatalf("processing transition must be suppressed, got %+v", notifier.notifications)
	}
}

func TestSnapshot_RemovalSuppressedButBaselineReplaced(t *testing.T) {
	engine, notifier, sink := newTestEngine("C1")

	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusActive}})

	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{}),
	})

	if notifier.count() != 0 {
		t.Fatalf("removal must not notify, got %+v", notifier.notifications)
	}
	if len(sink.snapshots) != 1 || len(sink.snapshots[0]) != 0 {
		t.Fatalf("observed snapshot must replace local state: %+v", sink.snapshots)
	}

	// Следующий снимок диффуется уже против пустого базового.
	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{{ID: "O1", Status: model.OrderStatusCompleted}}),
	})
	if notifier.count() != 0 {
		t.Fatalf("reappearing order has no previous status to transition from")
	}
}

func TestSnapshot_UnchangedStatusSilent(t *testing.T) {
	engine, notifier, _ := newTestEngine("C1")

	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusCompleted}})

	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{{ID: "O1", Status: model.OrderStatusCompleted}}),
	})

	if notifier.count() != 0 {
		t.Fatalf("unchanged status must not notify")
	}
}

func TestSnapshot_MalformedKeepsBaseline(t *testing.T) {
	engine, notifier, sink := newTestEngine("C1")

	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusActive}})

	engine.Handle(store.Change{Key: store.KeyOrders, NewValue: []byte(`{broken`)})

	if notifier.count() != 0 || len(sink.snapshots) != 0 {
		t.Fatalf("malformed snapshot must be ignored")
	}

	// Базовый снимок не тронут: завершение O1 всё ещё видно как переход.
	engine.Handle(store.Change{
		Key:      store.KeyOrders,
		NewValue: mustJSON(t, []model.Order{{ID: "O1", Status: model.OrderStatusCancelled, CancelledReason: "out of stock"}}),
	})
	if notifier.count() != 1 {
		t.Fatalf("got %d notifications, want 1", notifier.count())
	}
	if notifier.notifications[0].Reason != "out of stock" {
		t.Fatalf("cancellation must carry the reason")
	}
}

func TestChangeEvent_OwnershipFiltering(t *testing.T) {
	tests := []struct {
		name  string
		event model.ChangeEvent
		want  int
	}{
		{
			name: "own cancelled order notifies",
			event: model.ChangeEvent{
				OrderID: "O1",
				Status:  model.OrderStatusCancelled,
				Reason:  "cancelled by staff",
				OwnerID: "C1",
			},
			want: 1,
		},
		{
			name: "foreign owner discarded",
			event: model.ChangeEvent{
				OrderID: "O1",
				Status:  model.OrderStatusCancelled,
				OwnerID: "C2",
			},
			want: 0,
		},
		{
			name: "missing owner never broadcast",
			event: model.ChangeEvent{
				OrderID: "O1",
				Status:  model.OrderStatusCompleted,
			},
			want: 0,
		},
		{
			name: "intermediate status ignored",
			event: model.ChangeEvent{
				OrderID: "O1",
				Status:  model.OrderStatusProcessing,
				OwnerID: "C1",
			},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, notifier, _ := newTestEngine("C1")

			engine.Handle(store.Change{
				Key:      store.KeyLastOrderUpdate,
				NewValue: mustJSON(t, tt.event),
			})

			if notifier.count() != tt.want {
				t.Fatalf("got %d notifications, want %d", notifier.count(), tt.want)
			}
		})
	}
}

func TestChangeEvent_MalformedSwallowed(t *testing.T) {
	engine, notifier, _ := newTestEngine("C1")

	for _, raw := range [][]byte{nil, []byte(``), []byte(`{`), []byte(`42`), []byte(`"text"`)} {
		engine.Handle(store.Change{Key: store.KeyLastOrderUpdate, NewValue: raw})
	}

	if notifier.count() != 0 {
		t.Fatalf("malformed change events must be swallowed")
	}
}

func TestRun_DeliversExternalWrites(t *testing.T) {
	hub := store.NewHub()

	notifier := &captureNotifier{}
	sink := &captureSink{}
	engine := New(hub.Client(), "C1", sink, notifier, zap.NewNop())
	engine.SetBaseline([]model.Order{{ID: "O1", Status: model.OrderStatusActive, OwnerID: "C1"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = engine.Run(ctx)
		close(done)
	}()

	// Запись из другого контекста.
	admin := hub.Client()
	err := admin.Set(ctx, store.KeyOrders, mustJSON(t, []model.Order{
		{ID: "O1", Status: model.OrderStatusCompleted, OwnerID: "C1"},
	}))
	if err != nil {
		t.Fatalf("Set error: %v", err)
	}

	deadline := time.After(time.Second)
	for notifier.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("notification not delivered")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("engine did not stop on context cancel")
	}
}

package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mmeshcher/pos-order-system/internal/cart"
	"github.com/mmeshcher/pos-order-system/internal/model"
	"github.com/mmeshcher/pos-order-system/internal/validation"
)

type stubRepo struct {
	submitOrder *model.Order
	submitErr   error
	submitLines []model.CartLine

	cancelOrder *model.Order
	cancelErr   error
	cancelCalls int

	ownOrders []model.Order
	allOrders []model.Order
}

func (s *stubRepo) Submit(ctx context.Context, lines []model.CartLine, form model.SubmitForm) (*model.Order, error) {
	s.submitLines = lines
	return s.submitOrder, s.submitErr
}

func (s *stubRepo) Cancel(ctx context.Context, orderID string) (*model.Order, error) {
	s.cancelCalls++
	return s.cancelOrder, s.cancelErr
}

func (s *stubRepo) SetStatus(ctx context.Context, orderID string, status model.OrderStatus) (*model.Order, error) {
	return nil, nil
}

func (s *stubRepo) Remove(ctx context.Context, orderID string) error {
	return nil
}

func (s *stubRepo) Orders() []model.Order {
	return s.allOrders
}

func (s *stubRepo) OwnOrders() []model.Order {
	return s.ownOrders
}

func TestSubmitOrder_ClearsCartOnSuccess(t *testing.T) {
	c := cart.New()
	c.AddItem("Pho", 5)
	c.AddItem("Pho", 5)

	repo := &stubRepo{
		submitOrder: &model.Order{ID: "ORD1", Total: 10},
	}
	svc := NewService(c, repo, AutoConfirm)

	order, err := svc.SubmitOrder(context.Background(), model.SubmitForm{})
	if err != nil {
		t.Fatalf("SubmitOrder error: %v", err)
	}
	if order.ID != "ORD1" {
		t.Fatalf("unexpected order: %+v", order)
	}

	if c.Len() != 0 {
		t.Fatalf("cart must be empty after successful submission")
	}
	if len(repo.submitLines) != 1 || repo.submitLines[0].Qty != 2 {
		t.Fatalf("unexpected cart snapshot passed to repo: %+v", repo.submitLines)
	}
}

func TestSubmitOrder_KeepsCartOnValidationError(t *testing.T) {
	c := cart.New()
	c.AddItem("Pho", 5)

	repo := &stubRepo{
		submitErr: validation.ErrMissingName,
	}
	svc := NewService(c, repo, AutoConfirm)

	_, err := svc.SubmitOrder(context.Background(), model.SubmitForm{})
	if !errors.Is(err, validation.ErrMissingName) {
		t.Fatalf("expected ErrMissingName, got %v", err)
	}

	if c.Len() != 1 {
		t.Fatalf("cart must survive a failed submission")
	}
}

func TestCancelOrder_Declined(t *testing.T) {
	repo := &stubRepo{}
	declineAll := ConfirmerFunc(func(context.Context, string) bool { return false })

	svc := NewService(cart.New(), repo, declineAll)

	_, err := svc.CancelOrder(context.Background(), "ORD1")
	if !errors.Is(err, ErrCancellationDeclined) {
		t.Fatalf("expected ErrCancellationDeclined, got %v", err)
	}
	if repo.cancelCalls != 0 {
		t.Fatalf("declined cancellation must not reach the repository")
	}
}

func TestCancelOrder_Confirmed(t *testing.T) {
	repo := &stubRepo{
		cancelOrder: &model.Order{ID: "ORD1", Status: model.OrderStatusCancelled},
	}
	svc := NewService(cart.New(), repo, AutoConfirm)

	order, err := svc.CancelOrder(context.Background(), "ORD1")
	if err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}
	if order.Status != model.OrderStatusCancelled {
		t.Fatalf("unexpected order: %+v", order)
	}
	if repo.cancelCalls != 1 {
		t.Fatalf("cancelCalls = %d, want 1", repo.cancelCalls)
	}
}

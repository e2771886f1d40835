package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/khushwant-singh1/bundle-market/internal/core/domain"
)

func adminUser() domain.User {
	return domain.User{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin, IsActive: true}
}

func reviewableOrder(id string, status domain.OrderStatus) domain.Order {
	return domain.Order{
		ID:           id,
		Email:        "buyer@example.com",
		CustomerName: "Buyer",
		Status:       status,
		Items: []domain.OrderItem{
			{ID: "item-1", OrderID: id, BundleID: "bundle-1", Quantity: 1, UnitPriceCents: 4900},
		},
	}
}

func TestApproveTransitionsOrderAndPublishes(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	publisher := &publisherMock{}

	svc := NewApprovalService(orders, publisher, nil)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	svc.WithClock(fixedClock(now))

	order, err := svc.Approve(context.Background(), adminUser(), "order-1", "looks good")
	if err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if order.Status != domain.OrderStatusApproved {
		t.Fatalf("expected APPROVED, got %s", order.Status)
	}
	if order.ApprovedBy == nil || *order.ApprovedBy != "admin-1" {
		t.Fatalf("expected approval audit, got %+v", order.ApprovedBy)
	}
	if order.AdminNotes == nil || *order.AdminNotes != "looks good" {
		t.Fatalf("expected notes recorded, got %+v", order.AdminNotes)
	}

	if len(publisher.approved) != 1 {
		t.Fatalf("expected 1 approval event, got %d", len(publisher.approved))
	}
	event := publisher.approved[0]
	if event.OrderID != "order-1" || event.AdminID != "admin-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.BundleIDs) != 1 || event.BundleIDs[0] != "bundle-1" {
		t.Fatalf("expected bundle ids in event, got %v", event.BundleIDs)
	}
}

func TestApproveRejectsWrongStatus(t *testing.T) {
	statuses := []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusEmailVerified,
		domain.OrderStatusPaymentPending,
		domain.OrderStatusApproved,
		domain.OrderStatusCompleted,
		domain.OrderStatusRejected,
	}

	for _, status := range statuses {
		orders := &orderRepoMock{}
		orders.put(reviewableOrder("order-1", status))
		svc := NewApprovalService(orders, &publisherMock{}, nil)

		if _, err := svc.Approve(context.Background(), adminUser(), "order-1", ""); !errors.Is(err, ErrOrderNotApprovable) {
			t.Fatalf("status %s: expected ErrOrderNotApprovable, got %v", status, err)
		}
	}
}

func TestApproveSecondAttemptFails(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	svc := NewApprovalService(orders, &publisherMock{}, nil)

	if _, err := svc.Approve(context.Background(), adminUser(), "order-1", ""); err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	if _, err := svc.Approve(context.Background(), adminUser(), "order-1", ""); !errors.Is(err, ErrOrderNotApprovable) {
		t.Fatalf("expected ErrOrderNotApprovable on second approve, got %v", err)
	}
}

func TestApproveRequiresAdminRole(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	svc := NewApprovalService(orders, &publisherMock{}, nil)

	customer := domain.User{ID: "u1", Role: domain.RoleCustomer, IsActive: true}
	if _, err := svc.Approve(context.Background(), customer, "order-1", ""); !errors.Is(err, ErrAdminRequired) {
		t.Fatalf("expected ErrAdminRequired, got %v", err)
	}
	if orders.approveCalls != 0 {
		t.Fatalf("repository should not be touched, got %d approve calls", orders.approveCalls)
	}
}

func TestApproveSucceedsWhenPublishFails(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	publisher := &publisherMock{approvedErr: errors.New("broker down")}
	svc := NewApprovalService(orders, publisher, nil)

	order, err := svc.Approve(context.Background(), adminUser(), "order-1", "")
	if err != nil {
		t.Fatalf("Approve returned error despite committed decision: %v", err)
	}
	if order.Status != domain.OrderStatusApproved {
		t.Fatalf("expected APPROVED, got %s", order.Status)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	svc := NewApprovalService(orders, &publisherMock{}, nil)

	if _, err := svc.Reject(context.Background(), adminUser(), "order-1", "   "); !errors.Is(err, ErrRejectReasonRequired) {
		t.Fatalf("expected ErrRejectReasonRequired, got %v", err)
	}
}

func TestRejectTransitionsOrderAndPublishes(t *testing.T) {
	orders := &orderRepoMock{}
	orders.put(reviewableOrder("order-1", domain.OrderStatusPaymentUploaded))
	publisher := &publisherMock{}
	svc := NewApprovalService(orders, publisher, nil)

	order, err := svc.Reject(context.Background(), adminUser(), "order-1", "screenshot unreadable")
	if err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if order.Status != domain.OrderStatusRejected {
		t.Fatalf("expected REJECTED, got %s", order.Status)
	}
	if order.AdminNotes == nil || *order.AdminNotes != "screenshot unreadable" {
		t.Fatalf("expected reason recorded, got %+v", order.AdminNotes)
	}
	if len(publisher.rejected) != 1 || publisher.rejected[0].Reason != "screenshot unreadable" {
		t.Fatalf("expected rejection event with reason, got %+v", publisher.rejected)
	}
}

func TestRejectUnknownOrder(t *testing.T) {
	svc := NewApprovalService(&orderRepoMock{}, &publisherMock{}, nil)
	if _, err := svc.Reject(context.Background(), adminUser(), "missing", "reason"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

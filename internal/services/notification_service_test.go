package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
)

func newTestFeed(clock func() time.Time, retention time.Duration) NotificationService {
	return NewNotificationFeed(NotificationFeedDeps{
		Retention:     retention,
		SweepInterval: time.Hour, // sweeps driven by access in tests
		Clock:         clock,
	})
}

func feedEvent(id, scope, userID string, createdAt time.Time) domain.NotificationEvent {
	return domain.NotificationEvent{
		ID:           id,
		Kind:         domain.NotificationStatusChange,
		OrderID:      "ord-1",
		OrderKind:    domain.OrderKindRepair,
		ServiceScope: scope,
		UserID:       userID,
		Message:      "order moved",
		CreatedAt:    createdAt,
	}
}

func TestNotificationFeedScopeVisibility(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	feed := newTestFeed(fixedClock(now), time.Hour)
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-phone", domain.ScopePhone, "acct-cust", now))
	feed.Publish(feedEvent("ntf-laptop", domain.ScopeLaptop, "acct-other", now))
	feed.Publish(feedEvent("ntf-food", "rest-1", "acct-cust", now))

	ctx := context.Background()

	phone := feed.List(ctx, phoneVendor)
	if len(phone) != 1 || phone[0].ID != "ntf-phone" {
		t.Fatalf("phone vendor sees %+v", phone)
	}

	owner := feed.List(ctx, restaurantOwner)
	if len(owner) != 1 || owner[0].ID != "ntf-food" {
		t.Fatalf("restaurant admin sees %+v", owner)
	}

	all := feed.List(ctx, adminUser)
	if len(all) != 3 {
		t.Fatalf("admin sees %d events, want 3", len(all))
	}

	own := feed.List(ctx, customer)
	if len(own) != 2 {
		t.Fatalf("customer sees %d events, want their own 2", len(own))
	}
	for _, event := range own {
		if event.UserID != customer.ID {
			t.Fatalf("customer saw foreign event %+v", event)
		}
	}
}

func TestNotificationFeedNewestFirst(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	feed := newTestFeed(fixedClock(now), time.Hour)
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-old", domain.ScopePhone, "", now.Add(-2*time.Minute)))
	feed.Publish(feedEvent("ntf-new", domain.ScopePhone, "", now))
	feed.Publish(feedEvent("ntf-mid", domain.ScopePhone, "", now.Add(-time.Minute)))

	events := feed.List(context.Background(), adminUser)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].ID != "ntf-new" || events[1].ID != "ntf-mid" || events[2].ID != "ntf-old" {
		t.Fatalf("unexpected order: %s %s %s", events[0].ID, events[1].ID, events[2].ID)
	}
}

func TestNotificationFeedRetention(t *testing.T) {
	current := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return current }
	feed := newTestFeed(clock, 2*time.Minute)
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-1", domain.ScopePhone, "", current))

	current = current.Add(time.Minute)
	if events := feed.List(context.Background(), adminUser); len(events) != 1 {
		t.Fatalf("event expired too early: %d", len(events))
	}

	current = current.Add(5 * time.Minute)
	if events := feed.List(context.Background(), adminUser); len(events) != 0 {
		t.Fatalf("event outlived retention: %d", len(events))
	}
}

func TestNotificationFeedMarkRead(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	feed := newTestFeed(fixedClock(now), time.Hour)
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-1", domain.ScopePhone, "", now))

	if err := feed.MarkRead(context.Background(), phoneVendor, "ntf-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	events := feed.List(context.Background(), phoneVendor)
	if len(events) != 1 || !events[0].Read {
		t.Fatalf("event not marked read: %+v", events)
	}

	// Invisible to a laptop vendor, so not found rather than leaked.
	if err := feed.MarkRead(context.Background(), laptopVendor, "ntf-1"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
	if err := feed.MarkRead(context.Background(), phoneVendor, "ntf-missing"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected ErrNotificationNotFound, got %v", err)
	}
}

func TestNotificationFeedClearAllScoped(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	feed := newTestFeed(fixedClock(now), time.Hour)
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-phone", domain.ScopePhone, "", now))
	feed.Publish(feedEvent("ntf-laptop", domain.ScopeLaptop, "", now))

	cleared := feed.ClearAll(context.Background(), phoneVendor)
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
	if events := feed.List(context.Background(), adminUser); len(events) != 1 || events[0].ID != "ntf-laptop" {
		t.Fatalf("laptop event should survive, got %+v", events)
	}
}

func TestNotificationFeedEvictsBeyondCap(t *testing.T) {
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	feed := NewNotificationFeed(NotificationFeedDeps{
		Retention:     time.Hour,
		SweepInterval: time.Hour,
		MaxEvents:     2,
		Clock:         fixedClock(now),
	})
	defer feed.Stop()

	feed.Publish(feedEvent("ntf-1", domain.ScopePhone, "", now.Add(-2*time.Second)))
	feed.Publish(feedEvent("ntf-2", domain.ScopePhone, "", now.Add(-time.Second)))
	feed.Publish(feedEvent("ntf-3", domain.ScopePhone, "", now))

	events := feed.List(context.Background(), adminUser)
	if len(events) != 2 {
		t.Fatalf("expected cap of 2 events, got %d", len(events))
	}
	for _, event := range events {
		if event.ID == "ntf-1" {
			t.Fatal("oldest event should have been evicted")
		}
	}
}

package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/campusdesk/api/internal/domain"
)

const (
	defaultFeedRetention     = 2 * time.Minute
	defaultFeedSweepInterval = 30 * time.Second
	defaultFeedMaxEvents     = 500
)

// NotificationFeedDeps configures the in-memory notification feed.
type NotificationFeedDeps struct {
	Retention     time.Duration
	SweepInterval time.Duration
	MaxEvents     int
	Clock         func() time.Time
}

type notificationFeed struct {
	mu     sync.Mutex
	events map[string]domain.NotificationEvent

	retention time.Duration
	maxEvents int
	clock     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
}

// NewNotificationFeed constructs the feed and starts its retention janitor.
func NewNotificationFeed(deps NotificationFeedDeps) NotificationService {
	retention := deps.Retention
	if retention <= 0 {
		retention = defaultFeedRetention
	}
	sweep := deps.SweepInterval
	if sweep <= 0 {
		sweep = defaultFeedSweepInterval
	}
	maxEvents := deps.MaxEvents
	if maxEvents <= 0 {
		maxEvents = defaultFeedMaxEvents
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	feed := &notificationFeed{
		events:    make(map[string]domain.NotificationEvent),
		retention: retention,
		maxEvents: maxEvents,
		clock:     func() time.Time { return clock().UTC() },
		stop:      make(chan struct{}),
	}

	go feed.janitor(sweep)
	return feed
}

// Publish records the event, evicting the oldest entries beyond the cap.
func (f *notificationFeed) Publish(event domain.NotificationEvent) {
	if strings.TrimSpace(event.ID) == "" {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = f.clock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.events[event.ID] = event
	if len(f.events) > f.maxEvents {
		f.evictOldestLocked(len(f.events) - f.maxEvents)
	}
}

// List returns the events visible to the principal, newest first. Expired
// entries are pruned on access so readers never see stale events even between
// janitor sweeps.
func (f *notificationFeed) List(_ context.Context, principal domain.Principal) []domain.NotificationEvent {
	now := f.clock()

	f.mu.Lock()
	f.pruneLocked(now)
	visible := make([]domain.NotificationEvent, 0, len(f.events))
	for _, event := range f.events {
		if f.visibleTo(principal, event) {
			visible = append(visible, event)
		}
	}
	f.mu.Unlock()

	sort.Slice(visible, func(i, j int) bool {
		if visible[i].CreatedAt.Equal(visible[j].CreatedAt) {
			return visible[i].ID > visible[j].ID
		}
		return visible[i].CreatedAt.After(visible[j].CreatedAt)
	})
	return visible
}

// MarkRead flags a single visible event as read.
func (f *notificationFeed) MarkRead(_ context.Context, principal domain.Principal, eventID string) error {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return ErrNotificationNotFound
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(f.clock())
	event, ok := f.events[eventID]
	if !ok || !f.visibleTo(principal, event) {
		return ErrNotificationNotFound
	}
	event.Read = true
	f.events[eventID] = event
	return nil
}

// ClearAll removes every event visible to the principal, returning the count.
func (f *notificationFeed) ClearAll(_ context.Context, principal domain.Principal) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pruneLocked(f.clock())
	cleared := 0
	for id, event := range f.events {
		if f.visibleTo(principal, event) {
			delete(f.events, id)
			cleared++
		}
	}
	return cleared
}

// Stop halts the retention janitor.
func (f *notificationFeed) Stop() {
	f.stopOnce.Do(func() {
		close(f.stop)
	})
}

func (f *notificationFeed) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			return
		case <-ticker.C:
			f.mu.Lock()
			f.pruneLocked(f.clock())
			f.mu.Unlock()
		}
	}
}

func (f *notificationFeed) pruneLocked(now time.Time) {
	cutoff := now.Add(-f.retention)
	for id, event := range f.events {
		if event.CreatedAt.Before(cutoff) {
			delete(f.events, id)
		}
	}
}

func (f *notificationFeed) evictOldestLocked(n int) {
	type entry struct {
		id        string
		createdAt time.Time
	}
	entries := make([]entry, 0, len(f.events))
	for id, event := range f.events {
		entries = append(entries, entry{id: id, createdAt: event.CreatedAt})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})
	for i := 0; i < n && i < len(entries); i++ {
		delete(f.events, entries[i].id)
	}
}

// visibleTo applies the scope partition of the authorization policy to feed
// entries: operators see their partition, customers their own orders.
func (f *notificationFeed) visibleTo(principal domain.Principal, event domain.NotificationEvent) bool {
	if principal.Role == domain.RoleCustomer {
		return event.UserID == principal.ID
	}
	return Authorize(principal, ActionRead, event.ServiceScope).Allowed
}

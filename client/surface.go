package client

import "sync"

// BellSurface is the compact dropdown adapter: the newest few notifications
// plus the unread badge. It renders the shared cache and never fetches or
// mutates on its own.
type BellSurface struct {
	mu          sync.RWMutex
	limit       int
	items       []Notification
	badge       int
	unsubscribe func()
}

// NewBellSurface subscribes a bell surface showing at most limit items.
func NewBellSurface(cache *Cache, limit int) *BellSurface {
	if limit <= 0 {
		limit = 5
	}
	s := &BellSurface{limit: limit}
	s.unsubscribe = cache.Subscribe(s.apply)
	return s
}

func (s *BellSurface) apply(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(snap.Items) > s.limit {
		s.items = snap.Items[:s.limit]
	} else {
		s.items = snap.Items
	}
	s.badge = snap.UnreadCount
}

// Items returns the notifications currently shown in the dropdown.
func (s *BellSurface) Items() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Notification, len(s.items))
	copy(items, s.items)
	return items
}

// Badge returns the unread badge count.
func (s *BellSurface) Badge() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.badge
}

// Close detaches the surface from the cache.
func (s *BellSurface) Close() {
	s.unsubscribe()
}

// ListSurface is the full profile-page adapter: every cached notification,
// the unread count, pagination state and the transient error indicator. Same
// cache as the bell, so the two can never disagree.
type ListSurface struct {
	mu          sync.RWMutex
	snap        Snapshot
	unsubscribe func()
}

// NewListSurface subscribes a full-list surface.
func NewListSurface(cache *Cache) *ListSurface {
	s := &ListSurface{}
	s.unsubscribe = cache.Subscribe(s.apply)
	return s
}

func (s *ListSurface) apply(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
}

// Items returns every cached notification, newest first.
func (s *ListSurface) Items() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Notification, len(s.snap.Items))
	copy(items, s.snap.Items)
	return items
}

// UnreadCount returns the unread count the surface renders.
func (s *ListSurface) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.UnreadCount
}

// HasMore reports whether the store holds more pages.
func (s *ListSurface) HasMore() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.HasMore
}

// LastError returns the transient error indicator, or "".
func (s *ListSurface) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.LastError
}

// Close detaches the surface from the cache.
func (s *ListSurface) Close() {
	s.unsubscribe()
}

package client

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrMutationInFlight reports that a mutation on the same notification id is
// already pending. Mutations on one id are serialized; the caller retries
// after the pending one settles.
var ErrMutationInFlight = errors.New("a mutation for this notification is already in flight")

const defaultPageSize = 20

// Snapshot is an immutable view of the cache handed to subscribers. Items are
// newest first.
type Snapshot struct {
	Items       []Notification
	UnreadCount int
	Total       int64
	HasMore     bool
	LastError   string
}

// Subscriber receives a snapshot after every committed cache change.
type Subscriber func(Snapshot)

// Cache holds the authoritative client-side view of the current user's
// notifications. Two input paths feed it: list fetches from the store and
// asynchronous push events. All mutations write through to the store and roll
// back locally when the store rejects them, so the rendered state never stays
// ahead of server truth for longer than one round-trip.
type Cache struct {
	store  Store
	logger zerolog.Logger

	mu       sync.Mutex
	items    []Notification
	unread   int
	total    int64
	hasMore  bool
	pageSize int
	inFlight map[string]bool
	lastErr  error

	subMu   sync.Mutex
	subs    map[int]Subscriber
	nextSub int
}

// NewCache creates an empty cache backed by the given store.
func NewCache(store Store) *Cache {
	return &Cache{
		store:    store,
		logger:   log.With().Str("component", "notification_cache").Logger(),
		pageSize: defaultPageSize,
		inFlight: make(map[string]bool),
		subs:     make(map[int]Subscriber),
	}
}

// Subscribe registers a subscriber and returns its unsubscribe function. The
// subscriber immediately receives the current snapshot so late-mounting
// surfaces render the same state as everyone else.
func (c *Cache) Subscribe(fn Subscriber) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()

	fn(c.Snapshot())

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// Snapshot returns the current cache view.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() Snapshot {
	items := make([]Notification, len(c.items))
	copy(items, c.items)

	snap := Snapshot{
		Items:       items,
		UnreadCount: c.unread,
		Total:       c.total,
		HasMore:     c.hasMore,
	}
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

// UnreadCount returns the derived unread count.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Items returns a copy of the cached notifications, newest first.
func (c *Cache) Items() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]Notification, len(c.items))
	copy(items, c.items)
	return items
}

// Load fetches one page from the store. Page 1 replaces the cache; later
// pages merge in (pushes received meanwhile stay). On failure the cache keeps
// its last-known-good contents and only the error indicator changes. Without
// a credential the call is skipped entirely.
func (c *Cache) Load(ctx context.Context, page, size int) error {
	if size <= 0 {
		size = c.pageSize
	}

	result, err := c.store.List(ctx, page, size)
	if errors.Is(err, ErrNoCredential) {
		return nil
	}
	if err != nil {
		c.logger.Error().Err(err).Int("page", page).Msg("notification load failed")
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}

	c.mu.Lock()
	if page <= 1 {
		c.items = result.Items
	} else {
		c.items = mergeByID(c.items, result.Items)
	}
	sortNewestFirst(c.items)
	c.total = result.Total
	c.hasMore = result.HasMore
	c.lastErr = nil
	c.unread = countUnread(c.items)
	c.mu.Unlock()

	// The cache may hold only a page; the store's dedicated count is the
	// authoritative total and wins when reachable.
	if count, err := c.store.UnreadCount(ctx); err == nil {
		c.mu.Lock()
		c.unread = count
		c.mu.Unlock()
	}

	c.notify()
	return nil
}

// InvalidateAndRefetch discards cached pages and reloads from the store. Used
// after mutations the store might disagree with and after each channel
// (re)connection, to close the gap where pushes were missed.
func (c *Cache) InvalidateAndRefetch(ctx context.Context) error {
	return c.Load(ctx, 1, c.pageSize)
}

// UpsertFromPush inserts a pushed notification at its timestamp position. A
// duplicate id (reconnection replay) is a no-op.
func (c *Cache) UpsertFromPush(n Notification) {
	c.mu.Lock()
	if c.indexOf(n.ID) >= 0 {
		c.mu.Unlock()
		return
	}
	c.items = append(c.items, n)
	sortNewestFirst(c.items)
	c.total++
	if !n.Read {
		c.unread++
	}
	c.mu.Unlock()

	c.notify()
}

// MarkRead transitions one notification from unread to read. The flag flips
// optimistically, the store is told, and a store rejection rolls the flag
// back: the UI never keeps showing "read" for a write the server refused.
func (c *Cache) MarkRead(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 || c.items[idx].Read {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight[id] {
		c.mu.Unlock()
		return ErrMutationInFlight
	}
	c.inFlight[id] = true
	c.items[idx].Read = true
	if c.unread > 0 {
		c.unread--
	}
	c.mu.Unlock()
	c.notify()

	err := c.store.MarkRead(ctx, id)

	c.mu.Lock()
	delete(c.inFlight, id)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		if j := c.indexOf(id); j >= 0 {
			c.items[j].Read = false
			c.unread++
		}
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// MarkAllRead transitions every unread notification to read in one batch.
// All-or-nothing from the client's perspective: a store failure rolls every
// flag back, and the caller should refetch to reconcile truth.
func (c *Cache) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	flipped := make([]string, 0, len(c.items))
	for i := range c.items {
		if c.items[i].Read {
			continue
		}
		if c.inFlight[c.items[i].ID] {
			c.mu.Unlock()
			return ErrMutationInFlight
		}
		flipped = append(flipped, c.items[i].ID)
	}
	if len(flipped) == 0 && c.unread == 0 {
		c.mu.Unlock()
		return nil
	}
	for _, id := range flipped {
		c.inFlight[id] = true
		c.items[c.indexOf(id)].Read = true
	}
	c.unread = 0
	c.mu.Unlock()
	c.notify()

	err := c.store.MarkAllRead(ctx)

	c.mu.Lock()
	for _, id := range flipped {
		delete(c.inFlight, id)
	}
	if err != nil && !errors.Is(err, ErrNoCredential) {
		for _, id := range flipped {
			if j := c.indexOf(id); j >= 0 {
				c.items[j].Read = false
			}
		}
		// Recompute rather than restore: a push that arrived while the batch
		// call was in flight is part of the rolled-back state too.
		c.unread = countUnread(c.items)
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// Delete removes one notification regardless of read state. A store failure
// restores the item.
func (c *Cache) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight[id] {
		c.mu.Unlock()
		return ErrMutationInFlight
	}
	c.inFlight[id] = true
	removed := c.items[idx]
	c.items = append(c.items[:idx], c.items[idx+1:]...)
	if c.total > 0 {
		c.total--
	}
	if !removed.Read && c.unread > 0 {
		c.unread--
	}
	c.mu.Unlock()
	c.notify()

	err := c.store.Delete(ctx, id)

	c.mu.Lock()
	delete(c.inFlight, id)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		c.items = append(c.items, removed)
		sortNewestFirst(c.items)
		c.total++
		if !removed.Read {
			c.unread++
		}
		c.lastErr = err
		c.mu.Unlock()
		c.notify()
		return err
	}
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// DeleteAll empties the cache. Rolling back "all" from memory is not
// reconstructable once pushes interleave, so a store failure triggers a full
// reload from source of truth instead; only when that reload also fails is the
// pre-delete view restored as last-known-good.
func (c *Cache) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	prevItems := c.items
	prevUnread := c.unread
	prevTotal := c.total
	c.items = nil
	c.unread = 0
	c.total = 0
	c.hasMore = false
	c.mu.Unlock()
	c.notify()

	err := c.store.DeleteAll(ctx)
	if err != nil && !errors.Is(err, ErrNoCredential) {
		c.logger.Error().Err(err).Msg("delete-all failed, reloading from store")
		c.mu.Lock()
		c.lastErr = err
		c.mu.Unlock()
		if reloadErr := c.InvalidateAndRefetch(ctx); reloadErr != nil {
			c.mu.Lock()
			c.items = prevItems
			c.unread = prevUnread
			c.total = prevTotal
			c.mu.Unlock()
			c.notify()
		}
		return err
	}

	c.mu.Lock()
	c.lastErr = nil
	c.mu.Unlock()
	c.notify()
	return nil
}

// indexOf returns the position of id in items, or -1. Callers hold c.mu.
func (c *Cache) indexOf(id string) int {
	for i := range c.items {
		if c.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (c *Cache) notify() {
	c.subMu.Lock()
	subs := make([]Subscriber, 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	snap := c.Snapshot()
	for _, fn := range subs {
		fn(snap)
	}
}

// sortNewestFirst orders purely by creation timestamp, never by arrival
// order: pushes and fetch pages interleave unpredictably.
func sortNewestFirst(items []Notification) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
}

func countUnread(items []Notification) int {
	count := 0
	for i := range items {
		if !items[i].Read {
			count++
		}
	}
	return count
}

// mergeByID appends additions that are not already cached.
func mergeByID(existing, additions []Notification) []Notification {
	seen := make(map[string]bool, len(existing))
	for i := range existing {
		seen[existing[i].ID] = true
	}
	for _, n := range additions {
		if !seen[n.ID] {
			existing = append(existing, n)
		}
	}
	return existing
}

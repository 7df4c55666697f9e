package usecase

import (
	"sync"
	"time"

	"gitlab.com/chathy/api/chathy-command-engine/internal/model"
	"gitlab.com/chathy/api/chathy-command-engine/internal/observer"
	"gitlab.com/chathy/api/chathy-command-engine/pkg/utils"
)

// DedupeStatus classifies the outcome of a dedupe check.
type DedupeStatus int

const (
	// DedupeMiss means the key was unseen and is now reserved; the caller
	// must complete the reservation with Store once the reply is known.
	DedupeMiss DedupeStatus = iota
	// DedupeInFlight means another delivery of the same message is being
	// processed right now and no reply exists yet.
	DedupeInFlight
	// DedupeHit means the message was fully processed inside the window and
	// the cached reply is available for re-emission.
	DedupeHit
)

// DedupeCache remembers recently processed message IDs per channel so
// redelivered webhooks do not mutate state twice. Check reserves the key
// under the same lock that reads it, so two concurrent deliveries of one
// message cannot both see a miss. The cached reply is kept for hits, making
// redelivery fully idempotent from the sender's point of view.
type DedupeCache struct {
	mu      sync.Mutex
	entries map[string]dedupeEntry
	window  time.Duration
	stop    chan struct{}
	once    sync.Once
}

type dedupeEntry struct {
	reply     string
	pending   bool
	expiresAt time.Time
}

// NewDedupeCache creates the cache and starts its sweep goroutine.
func NewDedupeCache(window, sweepInterval time.Duration) *DedupeCache {
	c := &DedupeCache{
		entries: make(map[string]dedupeEntry),
		window:  window,
		stop:    make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Check looks the message up and reserves its key on a miss. For hits the
// first reply is returned. Messages without a channel ID cannot be
// deduplicated and always report a miss without a reservation.
func (c *DedupeCache) Check(channel model.Channel, messageID string) (string, DedupeStatus) {
	if messageID == "" {
		return "", DedupeMiss
	}
	key := dedupeKey(channel, messageID)
	now := utils.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok || now.After(entry.expiresAt) {
		// Reserve the key so a concurrent duplicate sees it in flight. The
		// reservation expires with the window in case the owner never stores.
		c.entries[key] = dedupeEntry{pending: true, expiresAt: now.Add(c.window)}
		return "", DedupeMiss
	}
	observer.IncDedupeHit(string(channel))
	if entry.pending {
		return "", DedupeInFlight
	}
	return entry.reply, DedupeHit
}

// Store completes the reservation with the reply that was sent.
func (c *DedupeCache) Store(channel model.Channel, messageID, reply string) {
	if messageID == "" {
		return
	}
	key := dedupeKey(channel, messageID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = dedupeEntry{reply: reply, expiresAt: utils.Now().Add(c.window)}
}

// Close stops the sweep goroutine.
func (c *DedupeCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *DedupeCache) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := utils.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func dedupeKey(channel model.Channel, messageID string) string {
	return string(channel) + "|" + messageID
}

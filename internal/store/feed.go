package store

import (
	"log"
	"sync"

	"outreachai/internal/models"
)

// Change describes a committed write to a campaign document. It carries just
// enough for subscribers to decide whether their query needs re-evaluation.
type Change struct {
	CampaignID  string                `json:"campaign_id"`
	OwnerUserID string                `json:"owner_user_id"`
	Status      models.CampaignStatus `json:"status"`
}

// ChangeFeed distributes change events from writers to subscribers. Delivery
// is at-least-once per committed state; no ordering is guaranteed between
// changes to independent documents.
type ChangeFeed interface {
	Publish(change Change) error
	// Subscribe returns a stream of changes and a cancel function that
	// releases the stream.
	Subscribe() (<-chan Change, func(), error)
}

// MemoryFeed is an in-process change feed. It backs the in-memory store and
// test setups; the AMQP feed replaces it when multiple processes share a
// database.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[int]chan Change
	next int
}

// NewMemoryFeed creates an in-process change feed
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]chan Change)}
}

// Publish delivers the change to every active subscriber
func (f *MemoryFeed) Publish(change Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, ch := range f.subs {
		select {
		case ch <- change:
		default:
			log.Printf("change feed: subscriber %d lagging, dropping change for %s", id, change.CampaignID)
		}
	}
	return nil
}

// Subscribe registers a new subscriber stream
func (f *MemoryFeed) Subscribe() (<-chan Change, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.next
	f.next++
	ch := make(chan Change, 16)
	f.subs[id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
	}
	return ch, cancel, nil
}

package store

import (
	"context"
	"log"
	"sync"

	"outreachai/internal/models"
)

// lister re-evaluates a query against the backing collection
type lister func(ctx context.Context, q Query) ([]*models.Campaign, error)

// querySubscription implements Subscription on top of a change feed. Each
// change event for the query's owner triggers a full re-evaluation; the
// complete result set is pushed wholesale. A buffered channel of one holds
// the latest snapshot, so a slow consumer sees coalesced state rather than a
// backlog of stale emissions.
type querySubscription struct {
	updates    chan []*models.Campaign
	cancelFeed func()
	cancelOnce sync.Once
	stop       chan struct{}
	done       chan struct{}
}

func newQuerySubscription(ctx context.Context, q Query, list lister, feed ChangeFeed) (*querySubscription, error) {
	changes, cancelFeed, err := feed.Subscribe()
	if err != nil {
		return nil, err
	}

	s := &querySubscription{
		updates:    make(chan []*models.Campaign, 1),
		cancelFeed: cancelFeed,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}

	go s.run(ctx, q, list, changes)
	return s, nil
}

func (s *querySubscription) run(ctx context.Context, q Query, list lister, changes <-chan Change) {
	defer close(s.done)
	defer close(s.updates)

	// Initial emission reflects current state before any change arrives
	s.reEvaluate(ctx, q, list)

	for {
		select {
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			// Status changes move documents in and out of the result
			// set, so any event for the owner forces re-evaluation.
			if change.OwnerUserID != q.OwnerUserID {
				continue
			}
			s.reEvaluate(ctx, q, list)
		}
	}
}

func (s *querySubscription) reEvaluate(ctx context.Context, q Query, list lister) {
	results, err := list(ctx, q)
	if err != nil {
		// Background subscription errors log and continue; the session
		// should not crash because one re-evaluation failed.
		log.Printf("subscription: query re-evaluation failed: %v", err)
		return
	}

	// Replace any undelivered snapshot with the latest one
	select {
	case s.updates <- results:
	default:
		select {
		case <-s.updates:
		default:
		}
		select {
		case s.updates <- results:
		default:
		}
	}
}

// Updates returns the push stream of query results
func (s *querySubscription) Updates() <-chan []*models.Campaign {
	return s.updates
}

// Cancel stops the subscription and releases its feed stream
func (s *querySubscription) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.stop)
		s.cancelFeed()
		<-s.done
	})
}

// Package feed fans store commits out to subscribed observers.
//
// Delivery is at-least-once per live subscription and in commit order.
// A subscriber that cannot keep up is dropped rather than blocking the
// writer; it learns about the drop through Err and is expected to
// re-subscribe and re-fetch a snapshot.
package feed

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/models"
)

// DefaultBuffer is the per-subscription queue length
const DefaultBuffer = 64

// Broker publishes commits to every live subscription
type Broker struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	seq    uint64
	buffer int
	closed bool
	now    func() time.Time
}

// NewBroker creates a broker whose subscriptions queue up to buffer commits
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[uint64]*Subscription),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscription is one observer's view of the feed
type Subscription struct {
	id     uint64
	broker *Broker
	ch     chan models.Commit
	done   chan struct{}

	once sync.Once
	err  error
}

// C delivers commits until the subscription ends
func (s *Subscription) C() <-chan models.Commit {
	return s.ch
}

// Done is closed when the subscription ends for any reason
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the subscription ended; nil while it is live or after
// the subscriber closed it itself.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.broker.remove(s.id)
	s.end(nil)
}

func (s *Subscription) end(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.ch)
		close(s.done)
	})
}

// Subscribe registers a new subscription. The subscription ends when ctx is
// cancelled, when Close is called, or when the broker drops it.
func (b *Broker) Subscribe(ctx context.Context) (*Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, apperrors.ErrFeedClosed
	}
	b.nextID++
	sub := &Subscription{
		id:     b.nextID,
		broker: b,
		ch:     make(chan models.Commit, b.buffer),
		done:   make(chan struct{}),
	}
	b.subs[sub.id] = sub
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Publish stamps the commit with the next sequence number and queues it on
// every subscription. Subscriptions with a full queue are dropped with a gap
// error. Publish never blocks on a subscriber.
func (b *Broker) Publish(changes ...models.Change) models.Commit {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	commit := models.Commit{
		Seq:         b.seq,
		CommittedAt: b.now(),
		Changes:     changes,
	}
	if b.closed {
		return commit
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- commit:
		default:
			delete(b.subs, id)
			sub.end(apperrors.ErrFeedGap)
		}
	}
	return commit
}

// Drop ends every live subscription with a gap error, as a lost connection
// would. New subscriptions are accepted afterwards.
func (b *Broker) Drop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.end(apperrors.ErrFeedGap)
	}
}

// Close ends every subscription and refuses new ones
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.end(apperrors.ErrFeedClosed)
	}
}

// Subscribers returns the number of live subscriptions
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broker) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

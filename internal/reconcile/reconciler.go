// Package reconcile keeps a local copy of the shared users, sessions and
// achievement states consistent with the store while other clients mutate
// them.
//
// On connect the Reconciler subscribes to the change feed, then fetches one
// full snapshot as its baseline, then folds every delivered commit into the
// cache. Subscribing first means no commit between the snapshot read and the
// subscription can be missed; a commit that is already reflected in the
// snapshot is recognised by its digest and ignored. When the feed drops, the
// Reconciler re-subscribes and re-fetches the whole snapshot.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/balkashynov/champ/internal/errors"
	"github.com/balkashynov/champ/internal/feed"
	"github.com/balkashynov/champ/internal/models"
)

// Source provides full snapshots of the shared state
type Source interface {
	Snapshot(ctx context.Context) (models.Snapshot, error)
}

// Feed provides change subscriptions
type Feed interface {
	Subscribe(ctx context.Context) (*feed.Subscription, error)
}

// Options configure a Reconciler
type Options struct {
	Self     string // owning user id; selects CurrentSession and Unlocked
	Location *time.Location
	Now      func() time.Time
	Logger   *slog.Logger

	// NewBackOff builds the retry policy used while re-syncing. Defaults to
	// an exponential back-off.
	NewBackOff func() backoff.BackOff
	// MaxElapsed bounds one re-sync attempt. Defaults to one minute.
	MaxElapsed time.Duration
}

// Reconciler owns the local state and is its only mutation entry point
type Reconciler struct {
	source Source
	feed   Feed

	self       string
	loc        *time.Location
	now        func() time.Time
	log        *slog.Logger
	newBackOff func() backoff.BackOff
	maxElapsed time.Duration

	mu        sync.Mutex
	state     *state
	view      View
	watchers  map[uint64]chan View
	nextWatch uint64
}

// New creates a Reconciler reading snapshots from source and commits from f
func New(source Source, f Feed, opts Options) *Reconciler {
	r := &Reconciler{
		source:     source,
		feed:       f,
		self:       opts.Self,
		loc:        opts.Location,
		now:        opts.Now,
		log:        opts.Logger,
		newBackOff: opts.NewBackOff,
		maxElapsed: opts.MaxElapsed,
		state:      newState(),
		watchers:   make(map[uint64]chan View),
	}
	if r.loc == nil {
		r.loc = time.Local
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.log == nil {
		r.log = slog.Default()
	}
	if r.newBackOff == nil {
		r.newBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	if r.maxElapsed <= 0 {
		r.maxElapsed = time.Minute
	}
	return r
}

// Run keeps the local state in sync until ctx is cancelled. It returns nil
// on cancellation and an error when the feed is closed or a re-sync gives up.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		sub, err := r.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("sync snapshot: %w", err)
		}

		err = r.consume(ctx, sub)
		sub.Close()

		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, apperrors.ErrFeedGap):
			r.log.Info("Change feed dropped, re-syncing", slog.Any("error", err))
			continue
		default:
			return err
		}
	}
}

// connect subscribes and loads a fresh baseline, retrying with back-off.
// The returned subscription is live; on error nothing is left subscribed.
func (r *Reconciler) connect(ctx context.Context) (*feed.Subscription, error) {
	attempt := func() (*feed.Subscription, error) {
		sub, err := r.feed.Subscribe(ctx)
		if err != nil {
			if errors.Is(err, apperrors.ErrFeedClosed) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}

		snap, err := r.source.Snapshot(ctx)
		if err != nil {
			sub.Close()
			return nil, err
		}
		if err := r.replace(snap); err != nil {
			sub.Close()
			return nil, backoff.Permanent(err)
		}
		return sub, nil
	}

	return backoff.Retry(ctx, attempt,
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxElapsedTime(r.maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.log.Warn("Snapshot sync failed, retrying",
				slog.Any("error", err),
				slog.Duration("retry_in", next))
		}))
}

// consume applies commits until the subscription ends or ctx is cancelled
func (r *Reconciler) consume(ctx context.Context, sub *feed.Subscription) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case commit, ok := <-sub.C():
			if !ok {
				if err := sub.Err(); err != nil {
					return err
				}
				return apperrors.ErrFeedGap
			}
			r.apply(commit.Changes, slog.Uint64("seq", commit.Seq))
		}
	}
}

// ApplyLocal folds the rows of a write this client just made. The feed echo
// of the same rows is then a no-op.
func (r *Reconciler) ApplyLocal(changes ...models.Change) {
	r.apply(changes, slog.String("source", "local"))
}

// apply folds a batch of changes, then rebuilds the view once so that no
// half-applied batch is ever visible
func (r *Reconciler) apply(changes []models.Change, origin slog.Attr) {
	r.mu.Lock()
	defer r.mu.Unlock()

	changed := false
	for _, c := range changes {
		ok, err := r.state.apply(c)
		if err != nil {
			r.log.Error("Skipping change", origin,
				slog.String("entity", string(c.Entity)),
				slog.String("id", c.ID),
				slog.Any("error", err))
			continue
		}
		changed = changed || ok
	}

	if !changed {
		r.log.Debug("Commit already applied", origin, slog.Int("changes", len(changes)))
		return
	}
	// Before the first snapshot the cache is about to be replaced anyway
	if r.view.Ready {
		r.rebuild()
	}
}

func (r *Reconciler) replace(snap models.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.state.replace(snap); err != nil {
		return err
	}
	r.log.Debug("Loaded snapshot",
		slog.Int("users", len(snap.Users)),
		slog.Int("sessions", len(snap.Sessions)))
	r.rebuild()
	return nil
}

// Refresh recomputes time-dependent values such as DaysUntilReset
func (r *Reconciler) Refresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.view.Ready {
		r.rebuild()
	}
}

// rebuild must be called with r.mu held
func (r *Reconciler) rebuild() {
	version := r.view.Version + 1
	r.view = buildView(r.state, r.self, r.now(), r.loc)
	r.view.Version = version

	for _, ch := range r.watchers {
		publishLatest(ch, r.view)
	}
}

// View returns the current view
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view
}

// Watch delivers views as they change until ctx is cancelled. Slow readers
// only ever see the latest view; intermediate ones are skipped.
func (r *Reconciler) Watch(ctx context.Context) <-chan View {
	ch := make(chan View, 1)

	r.mu.Lock()
	r.nextWatch++
	id := r.nextWatch
	r.watchers[id] = ch
	if r.view.Ready {
		ch <- r.view
	}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.watchers, id)
		close(ch)
		r.mu.Unlock()
	}()
	return ch
}

// WaitFor blocks until a view satisfies pred or ctx is done
func (r *Reconciler) WaitFor(ctx context.Context, pred func(View) bool) (View, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for v := range r.Watch(ctx) {
		if pred(v) {
			return v, nil
		}
	}
	return View{}, ctx.Err()
}

// publishLatest replaces whatever is queued on ch with v. Only called with
// the Reconciler lock held, so it is the sole sender.
func publishLatest(ch chan View, v View) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- v
}

package rebac

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/oarkflow/rebac/logger"
)

// SnapshotLoader produces a fresh snapshot plus the actor contexts that go
// with it. stores.SQLPolicyStore and stores.MemoryPolicyStore satisfy this.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context) (*Snapshot, map[string]*ActorContext, error)
}

// SnapshotSubscriber is notified whenever a reload produces a new snapshot.
type SnapshotSubscriber interface {
	OnSnapshot(ctx context.Context, snap *Snapshot, actors map[string]*ActorContext)
}

// SnapshotSubscriberFunc adapts a function to SnapshotSubscriber.
type SnapshotSubscriberFunc func(ctx context.Context, snap *Snapshot, actors map[string]*ActorContext)

func (f SnapshotSubscriberFunc) OnSnapshot(ctx context.Context, snap *Snapshot, actors map[string]*ActorContext) {
	f(ctx, snap, actors)
}

// SnapshotPublisher keeps a current snapshot loaded from a SnapshotLoader,
// reloading on an interval or on explicit change notification, and fans the
// result out to subscribers. It implements SnapshotSource, so a Server can
// sit directly on top of it. Evaluations in flight keep the snapshot they
// started with; a swap never mutates a published snapshot.
type SnapshotPublisher struct {
	loader         SnapshotLoader
	log            logger.Logger
	reloadInterval time.Duration
	notifyCh       chan struct{}
	stopCh         chan struct{}
	subscribers    []SnapshotSubscriber
	mu             sync.RWMutex
	current        *Snapshot
	actors         map[string]*ActorContext
	started        bool
	wg             sync.WaitGroup
}

// SnapshotPublisherOption customizes publisher construction.
type SnapshotPublisherOption func(*SnapshotPublisher)

// WithReloadInterval sets the periodic reload cadence. Zero disables the
// timer; reloads then happen only through NotifyChange.
func WithReloadInterval(interval time.Duration) SnapshotPublisherOption {
	return func(p *SnapshotPublisher) { p.reloadInterval = interval }
}

// WithPublisherLogger sets the publisher's logger.
func WithPublisherLogger(l logger.Logger) SnapshotPublisherOption {
	return func(p *SnapshotPublisher) {
		if l != nil {
			p.log = l
		}
	}
}

// NewSnapshotPublisher performs an initial load and returns the publisher.
func NewSnapshotPublisher(ctx context.Context, loader SnapshotLoader, opts ...SnapshotPublisherOption) (*SnapshotPublisher, error) {
	p := &SnapshotPublisher{
		loader:   loader,
		log:      &logger.NullLogger{},
		notifyCh: make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.reload(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Start runs the reload loop until ctx is done or Stop is called.
func (p *SnapshotPublisher) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		var tick <-chan time.Time
		if p.reloadInterval > 0 {
			ticker := time.NewTicker(p.reloadInterval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-p.notifyCh:
				if err := p.reload(ctx); err != nil {
					p.log.Error("snapshot reload failed", "error", err.Error())
				}
			case <-tick:
				if err := p.reload(ctx); err != nil {
					p.log.Error("snapshot reload failed", "error", err.Error())
				}
			}
		}
	}()
}

// Stop shuts the reload loop down, waiting until ctx expires at most.
func (p *SnapshotPublisher) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()

	close(p.stopCh)
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// NotifyChange requests an asynchronous reload. Coalesces bursts.
func (p *SnapshotPublisher) NotifyChange() {
	select {
	case p.notifyCh <- struct{}{}:
	default:
	}
}

// Subscribe registers a subscriber for future reloads.
func (p *SnapshotPublisher) Subscribe(sub SnapshotSubscriber) {
	if sub == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, sub)
}

// Current returns the latest snapshot and actor contexts.
func (p *SnapshotPublisher) Current() (*Snapshot, map[string]*ActorContext) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.actors
}

// Snapshot implements SnapshotSource for the HTTP server.
func (p *SnapshotPublisher) Snapshot(*http.Request) (*Snapshot, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, nil
}

// Actor looks up an actor context from the latest load.
func (p *SnapshotPublisher) Actor(id string) (*ActorContext, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.actors[id]
	return a, ok
}

func (p *SnapshotPublisher) reload(ctx context.Context) error {
	snap, actors, err := p.loader.LoadSnapshot(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.current = snap
	p.actors = actors
	subs := make([]SnapshotSubscriber, len(p.subscribers))
	copy(subs, p.subscribers)
	p.mu.Unlock()

	for _, sub := range subs {
		sub.OnSnapshot(ctx, snap, actors)
	}
	p.log.Debug("snapshot published", "actors", len(actors))
	return nil
}

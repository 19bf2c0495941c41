// Package binder scopes document operations to the signed-in user of an
// auth.Context and turns collection queries into live subscriptions.
package binder

import (
	"context"
	"sync"

	"neurodash/internal/auth"
	"neurodash/internal/docstore"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// ErrNotAuthenticated is returned by every operation when the context has no
// current user. No storage access happens in that case.
var ErrNotAuthenticated = errors.New("not authenticated")

var (
	liveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "neurodash_live_subscriptions",
		Help: "Number of open collection subscriptions.",
	})
	writesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurodash_document_writes_total",
		Help: "Document writes by collection and operation.",
	}, []string{"collection", "op"})
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "neurodash_binder_errors_total",
		Help: "Failed binder operations by collection.",
	}, []string{"collection"})
)

// Binder is cheap to create; make one per session.
type Binder struct {
	store *docstore.Store
	ident *auth.Context
	log   zerolog.Logger
}

func New(store *docstore.Store, ident *auth.Context, log zerolog.Logger) *Binder {
	return &Binder{store: store, ident: ident, log: log.With().Str("component", "binder").Logger()}
}

// Identity returns the context the binder is scoped to.
func (b *Binder) Identity() *auth.Context {
	return b.ident
}

func (b *Binder) userID() (int, error) {
	if b.ident == nil {
		return 0, ErrNotAuthenticated
	}
	id := b.ident.CurrentUser()
	if id == nil {
		return 0, ErrNotAuthenticated
	}
	return id.ID, nil
}

func (b *Binder) fail(collection string, err error) error {
	if err != nil && !errors.Is(err, ErrNotAuthenticated) && !errors.Is(err, docstore.ErrNotFound) {
		errorsTotal.WithLabelValues(collection).Inc()
	}
	return err
}

// Create stores data in the user's collection with a server timestamp.
func (b *Binder) Create(ctx context.Context, collection string, data any) (docstore.Document, error) {
	uid, err := b.userID()
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := b.store.Create(ctx, uid, collection, data)
	if err != nil {
		return docstore.Document{}, b.fail(collection, err)
	}
	writesTotal.WithLabelValues(collection, "create").Inc()
	return doc, nil
}

// Get returns one document of the user's collection.
func (b *Binder) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	uid, err := b.userID()
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := b.store.Get(ctx, uid, collection, id)
	return doc, b.fail(collection, err)
}

// List runs q once against the user's collection.
func (b *Binder) List(ctx context.Context, collection string, q docstore.Query) ([]docstore.Document, error) {
	uid, err := b.userID()
	if err != nil {
		return nil, err
	}
	docs, err := b.store.List(ctx, uid, collection, q)
	return docs, b.fail(collection, err)
}

// Count returns how many documents of the user's collection match q.
func (b *Binder) Count(ctx context.Context, collection string, q docstore.Query) (int, error) {
	uid, err := b.userID()
	if err != nil {
		return 0, err
	}
	n, err := b.store.Count(ctx, uid, collection, q)
	return n, b.fail(collection, err)
}

// Update merges fields into an existing document; docstore.ErrNotFound when missing.
func (b *Binder) Update(ctx context.Context, collection, id string, fields any) (docstore.Document, error) {
	uid, err := b.userID()
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := b.store.Update(ctx, uid, collection, id, fields)
	if err != nil {
		return docstore.Document{}, b.fail(collection, err)
	}
	writesTotal.WithLabelValues(collection, "update").Inc()
	return doc, nil
}

// Set writes a document under a caller-chosen id.
func (b *Binder) Set(ctx context.Context, collection, id string, data any, merge bool) (docstore.Document, error) {
	uid, err := b.userID()
	if err != nil {
		return docstore.Document{}, err
	}
	doc, err := b.store.Set(ctx, uid, collection, id, data, merge)
	if err != nil {
		return docstore.Document{}, b.fail(collection, err)
	}
	writesTotal.WithLabelValues(collection, "set").Inc()
	return doc, nil
}

// Transform reads and rewrites one document atomically.
func (b *Binder) Transform(ctx context.Context, collection, id string, fn docstore.TransformFunc) (docstore.Document, bool, error) {
	uid, err := b.userID()
	if err != nil {
		return docstore.Document{}, false, err
	}
	doc, wrote, err := b.store.Transform(ctx, uid, collection, id, fn)
	if err != nil {
		return docstore.Document{}, false, b.fail(collection, err)
	}
	if wrote {
		writesTotal.WithLabelValues(collection, "transform").Inc()
	}
	return doc, wrote, nil
}

// Delete removes a document. Deleting a missing id succeeds.
func (b *Binder) Delete(ctx context.Context, collection, id string) error {
	uid, err := b.userID()
	if err != nil {
		return err
	}
	if err := b.store.Delete(ctx, uid, collection, id); err != nil {
		return b.fail(collection, err)
	}
	writesTotal.WithLabelValues(collection, "delete").Inc()
	return nil
}

// State is the lifecycle of a Subscription.
type State int

const (
	Unbound State = iota
	Binding
	Live
	Closed
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Binding:
		return "binding"
	case Live:
		return "live"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription delivers the full result set of a query on every change to
// its collection until closed.
type Subscription struct {
	binder     *Binder
	collection string
	query      docstore.Query
	userID     int
	fn         func([]docstore.Document)

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	deregister func()
	done       chan struct{}
}

// Bind subscribes fn to q on the user's collection. fn receives the initial
// result set and then a fresh one after each committed write. Callbacks run
// on a single goroutine per subscription, so they never overlap. The
// subscription closes itself when the identity changes.
func (b *Binder) Bind(ctx context.Context, collection string, q docstore.Query, fn func([]docstore.Document)) (*Subscription, error) {
	uid, err := b.userID()
	if err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		binder:     b,
		collection: collection,
		query:      q,
		userID:     uid,
		fn:         fn,
		state:      Binding,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	liveSubscriptions.Inc()

	// Subscribe to changes before the first read so no write is missed.
	changes, stopWatch := b.store.Watch(uid, collection)
	go sub.run(ctx, b, changes, stopWatch, fn)

	deregister := b.ident.OnChange(func(id *auth.Identity) {
		if id == nil || id.ID != uid {
			sub.Close()
		}
	})
	sub.mu.Lock()
	if sub.state == Closed {
		sub.mu.Unlock()
		deregister()
	} else {
		sub.deregister = deregister
		sub.mu.Unlock()
	}

	b.log.Debug().Str("collection", collection).Str("query", q.String()).Int("user_id", uid).Msg("subscription bound")
	return sub, nil
}

func (s *Subscription) run(ctx context.Context, b *Binder, changes <-chan struct{}, stopWatch func(), fn func([]docstore.Document)) {
	defer close(s.done)
	defer stopWatch()
	defer liveSubscriptions.Dec()

	load := func() {
		docs, err := b.store.List(ctx, s.userID, s.collection, s.query)
		if err != nil {
			if ctx.Err() == nil {
				b.fail(s.collection, err)
				b.log.Error().Err(err).Str("collection", s.collection).Msg("subscription read failed")
			}
			return
		}
		s.mu.Lock()
		if s.state == Closed {
			s.mu.Unlock()
			return
		}
		s.state = Live
		s.mu.Unlock()
		fn(docs)
	}

	load()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			load()
		}
	}
}

// Close stops delivery. It does not block and is safe to call repeatedly and
// from inside the callback. A delivery that had already passed its state
// check when Close was called still runs, possibly after Close returns.
// Callers on other goroutines that need "no callback after this point" wait
// on Done, as Rebind does.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	s.state = Closed
	deregister := s.deregister
	s.deregister = nil
	s.mu.Unlock()

	s.cancel()
	if deregister != nil {
		deregister()
	}
}

// Rebind closes s and opens a fresh subscription on the same collection and
// callback with query q. The old subscription delivers nothing once the new
// one is returned. It waits for the old delivery goroutine, so it must not
// be called from the callback.
func (s *Subscription) Rebind(ctx context.Context, q docstore.Query) (*Subscription, error) {
	s.Close()
	<-s.done
	return s.binder.Bind(ctx, s.collection, q, s.fn)
}

// State reports the current lifecycle state.
func (s *Subscription) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Collection returns the collection the subscription reads.
func (s *Subscription) Collection() string {
	return s.collection
}

// Query returns the query the subscription was bound with.
func (s *Subscription) Query() docstore.Query {
	return s.query
}

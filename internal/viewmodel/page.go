// Package viewmodel keeps the per-page state of a collection screen: the
// mirrored list, the edit modal and its draft.
package viewmodel

import (
	"context"
	"sync"
	"sync/atomic"

	"neurodash/internal/auth"
	"neurodash/internal/binder"
	"neurodash/internal/docstore"
	"neurodash/internal/schedule"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LoginPath is where pages send a visitor without a session.
const LoginPath = "/login"

type Option func(*options)

type options struct {
	redirect func(path string)
	log      zerolog.Logger
}

// WithRedirect sets the hook called with LoginPath when the page needs a session.
func WithRedirect(fn func(path string)) Option {
	return func(o *options) { o.redirect = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// Page mirrors one collection and holds the modal state of its form.
type Page[T any] struct {
	coll     binder.Collection[T]
	idOf     func(T) string
	redirect func(string)
	log      zerolog.Logger
	timers   *schedule.Scheduler
	stopAuth func()

	mu        sync.Mutex
	items     []T
	modalOpen bool
	editingID string
	draft     T
	lastErr   error
	sub       *binder.Subscription
	changes   chan struct{}
	disposed  bool
}

// New returns a page over coll. idOf extracts the document id of an entity.
// The page redirects to login when the identity is lost after creation.
func New[T any](ctx context.Context, coll binder.Collection[T], idOf func(T) string, opts ...Option) *Page[T] {
	o := options{redirect: func(string) {}, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Page[T]{
		coll:     coll,
		idOf:     idOf,
		redirect: o.redirect,
		log:      o.log,
		timers:   schedule.NewScheduler(ctx),
		items:    []T{},
		changes:  make(chan struct{}, 1),
	}

	ident := coll.Binder().Identity()
	if ident == nil {
		p.stopAuth = func() {}
		return p
	}
	var seen atomic.Bool
	p.stopAuth = ident.OnChange(func(id *auth.Identity) {
		// The first call reports the identity at creation.
		if !seen.Swap(true) {
			return
		}
		if id == nil {
			p.redirect(LoginPath)
		}
	})
	return p
}

func (p *Page[T]) signedIn() bool {
	ident := p.coll.Binder().Identity()
	return ident != nil && ident.CurrentUser() != nil
}

// Watch binds the mirror to q, replacing any previous binding.
func (p *Page[T]) Watch(ctx context.Context, q docstore.Query) error {
	p.mu.Lock()
	old := p.sub
	p.sub = nil
	disposed := p.disposed
	p.mu.Unlock()

	if disposed {
		return errors.New("page disposed")
	}

	var (
		sub *binder.Subscription
		err error
	)
	if old != nil {
		sub, err = old.Rebind(ctx, q)
	} else {
		sub, err = p.coll.Bind(ctx, q, p.apply)
	}
	if err != nil {
		return p.fail(err)
	}

	p.mu.Lock()
	p.sub = sub
	p.mu.Unlock()
	return nil
}

// SetWindow moves the bound window, e.g. on month navigation.
func (p *Page[T]) SetWindow(ctx context.Context, q docstore.Query) error {
	return p.Watch(ctx, q)
}

func (p *Page[T]) apply(items []T) {
	p.mu.Lock()
	p.items = items
	p.mu.Unlock()
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// Changes signals after each refresh of the mirror. Signals coalesce.
func (p *Page[T]) Changes() <-chan struct{} {
	return p.changes
}

// Items returns a copy of the mirrored list.
func (p *Page[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}

// Find returns the mirrored entity with id.
func (p *Page[T]) Find(id string) (T, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, it := range p.items {
		if p.idOf(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// OpenCreate opens the modal with a fresh draft and no id.
func (p *Page[T]) OpenCreate(defaults T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modalOpen = true
	p.editingID = ""
	p.draft = defaults
	p.lastErr = nil
}

// OpenEdit loads the draft from the mirrored entity with id.
func (p *Page[T]) OpenEdit(id string) error {
	it, ok := p.Find(id)
	if !ok {
		return docstore.ErrNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modalOpen = true
	p.editingID = id
	p.draft = it
	p.lastErr = nil
	return nil
}

// Edit changes the open draft in place.
func (p *Page[T]) Edit(fn func(*T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.modalOpen {
		fn(&p.draft)
	}
}

func (p *Page[T]) Draft() T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

func (p *Page[T]) ModalOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modalOpen
}

// EditingID is empty while creating.
func (p *Page[T]) EditingID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.editingID
}

// Err is the error of the last failed mutation, cleared by the next success.
func (p *Page[T]) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// CanSave reports whether the draft passes validation.
func (p *Page[T]) CanSave() bool {
	d := p.Draft()
	if v, ok := any(d).(binder.Validator); ok {
		return v.Validate() == nil
	}
	return true
}

// Save creates or updates from the draft and closes the modal. On failure
// the modal and draft stay as they were.
func (p *Page[T]) Save(ctx context.Context) error {
	p.mu.Lock()
	if !p.modalOpen {
		p.mu.Unlock()
		return nil
	}
	draft, editingID := p.draft, p.editingID
	p.mu.Unlock()

	if !p.signedIn() {
		return p.fail(binder.ErrNotAuthenticated)
	}
	if v, ok := any(draft).(binder.Validator); ok {
		if err := v.Validate(); err != nil {
			p.mu.Lock()
			p.lastErr = err
			p.mu.Unlock()
			return err
		}
	}

	var err error
	if editingID != "" {
		_, err = p.coll.Replace(ctx, editingID, draft)
		// The entity was deleted elsewhere; nothing left to edit.
		if errors.Is(err, docstore.ErrNotFound) {
			err = nil
		}
	} else {
		_, err = p.coll.Create(ctx, draft)
	}
	if err != nil {
		return p.fail(err)
	}

	p.Close()
	return nil
}

// Close discards the draft without persisting it.
func (p *Page[T]) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	p.modalOpen = false
	p.editingID = ""
	p.draft = zero
	p.lastErr = nil
}

// Delete removes the entity immediately. A missing entity is not an error.
func (p *Page[T]) Delete(ctx context.Context, id string) error {
	if err := p.coll.Delete(ctx, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return p.fail(err)
	}
	return nil
}

// Mutate applies fn to the stored entity with id, e.g. toggling a flag. Ids
// missing from the mirror are ignored.
func (p *Page[T]) Mutate(ctx context.Context, id string, fn func(T) T) error {
	if !p.signedIn() {
		return p.fail(binder.ErrNotAuthenticated)
	}
	if _, ok := p.Find(id); !ok {
		return nil
	}
	_, err := p.coll.Modify(ctx, id, func(v *T) error {
		*v = fn(*v)
		return nil
	})
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		return p.fail(err)
	}
	return nil
}

func (p *Page[T]) fail(err error) error {
	if errors.Is(err, binder.ErrNotAuthenticated) {
		p.redirect(LoginPath)
	} else {
		p.log.Warn().Err(err).Str("collection", p.coll.Name()).Msg("page operation failed")
	}
	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	return err
}

// Timers returns the scheduler owned by this page; Dispose stops it.
func (p *Page[T]) Timers() *schedule.Scheduler {
	return p.timers
}

// Dispose releases the subscription, the timers and the identity handler.
// It is safe to call more than once.
func (p *Page[T]) Dispose() {
	p.mu.Lock()
	if p.disposed {
		p.mu.Unlock()
		return
	}
	p.disposed = true
	sub := p.sub
	p.sub = nil
	p.mu.Unlock()

	if sub != nil {
		sub.Close()
		<-sub.Done()
	}
	p.timers.Stop()
	p.stopAuth()
}

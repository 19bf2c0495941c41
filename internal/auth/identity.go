package auth

import (
	"sync"
)

// Identity is the authenticated user. ID namespaces all personal data.
type Identity struct {
	ID          int    `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Context tracks the current identity of one session (a request, a live
// stream, a page) and notifies dependents when it changes. The zero value is
// a signed-out context.
type Context struct {
	mu       sync.Mutex
	current  *Identity
	handlers map[int]func(*Identity)
	nextID   int
}

// NewContext returns a context holding initial, which may be nil.
func NewContext(initial *Identity) *Context {
	c := &Context{}
	if initial != nil {
		id := *initial
		c.current = &id
	}
	return c
}

// Resolve builds a Context from a bearer token. An invalid or expired token
// yields a signed-out context rather than an error.
func Resolve(issuer *TokenIssuer, token string) *Context {
	if issuer == nil || token == "" {
		return NewContext(nil)
	}
	claims, err := issuer.ValidateToken(token)
	if err != nil {
		return NewContext(nil)
	}
	return NewContext(claims.Identity())
}

// CurrentUser returns a snapshot of the current identity, nil when signed out.
func (c *Context) CurrentUser() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	id := *c.current
	return &id
}

// OnChange registers fn. It is called once immediately with the current value
// and again on every transition. The returned function deregisters fn and
// must be called on teardown.
func (c *Context) OnChange(fn func(*Identity)) (deregister func()) {
	c.mu.Lock()
	if c.handlers == nil {
		c.handlers = make(map[int]func(*Identity))
	}
	key := c.nextID
	c.nextID++
	c.handlers[key] = fn
	c.mu.Unlock()

	fn(c.CurrentUser())

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.handlers, key)
			c.mu.Unlock()
		})
	}
}

// SignIn sets the current identity and notifies handlers.
func (c *Context) SignIn(id *Identity) {
	var next *Identity
	if id != nil {
		cp := *id
		next = &cp
	}
	c.set(next)
}

// SignOut clears the current identity and notifies handlers.
func (c *Context) SignOut() {
	c.set(nil)
}

func (c *Context) set(next *Identity) {
	c.mu.Lock()
	if sameIdentity(c.current, next) {
		c.mu.Unlock()
		return
	}
	c.current = next
	fns := make([]func(*Identity), 0, len(c.handlers))
	for _, fn := range c.handlers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(c.CurrentUser())
	}
}

func sameIdentity(a, b *Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Registry tracks the open contexts of each user so that signing a user out
// transitions every one of their sessions to "none".
type Registry struct {
	mu       sync.Mutex
	contexts map[int]map[*Context]struct{}
}

func NewRegistry() *Registry {
	return &Registry{contexts: make(map[int]map[*Context]struct{})}
}

// Track registers ctx under its current user. The returned function removes it.
func (r *Registry) Track(ctx *Context) (untrack func()) {
	id := ctx.CurrentUser()
	if id == nil {
		return func() {}
	}
	r.mu.Lock()
	set, ok := r.contexts[id.ID]
	if !ok {
		set = make(map[*Context]struct{})
		r.contexts[id.ID] = set
	}
	set[ctx] = struct{}{}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if set, ok := r.contexts[id.ID]; ok {
			delete(set, ctx)
			if len(set) == 0 {
				delete(r.contexts, id.ID)
			}
		}
	}
}

// SignOutUser signs out every tracked context of userID.
func (r *Registry) SignOutUser(userID int) int {
	r.mu.Lock()
	var open []*Context
	for ctx := range r.contexts[userID] {
		open = append(open, ctx)
	}
	delete(r.contexts, userID)
	r.mu.Unlock()

	for _, ctx := range open {
		ctx.SignOut()
	}
	return len(open)
}

// Open returns the number of tracked contexts for userID.
func (r *Registry) Open(userID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts[userID])
}

package binder

import (
	"context"
	"encoding/json"

	"neurodash/internal/docstore"

	"github.com/pkg/errors"
)

// Validator is implemented by entities that check their own invariants
// before they are written.
type Validator interface {
	Validate() error
}

// Normalizer is implemented by entity pointers that fill in derived fields,
// such as ids of nested items, before every write.
type Normalizer interface {
	Normalize()
}

// prepare normalizes and validates v ahead of a write.
func prepare[T any](v *T) error {
	if n, ok := any(v).(Normalizer); ok {
		n.Normalize()
	}
	return validate(*v)
}

func validate(v any) error {
	if val, ok := v.(Validator); ok {
		return val.Validate()
	}
	return nil
}

// Collection is a typed view of one named collection.
type Collection[T any] struct {
	b    *Binder
	name string
}

func NewCollection[T any](b *Binder, name string) Collection[T] {
	return Collection[T]{b: b, name: name}
}

// Name returns the collection name.
func (c Collection[T]) Name() string {
	return c.name
}

// Binder returns the binder the collection writes through.
func (c Collection[T]) Binder() *Binder {
	return c.b
}

// Decode converts documents to entities, skipping documents that do not
// decode.
func Decode[T any](docs []docstore.Document) []T {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := doc.Decode(&v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func decodeOne[T any](doc docstore.Document) (T, error) {
	var v T
	err := doc.Decode(&v)
	return v, err
}

// Create validates v and stores it under a fresh id.
func (c Collection[T]) Create(ctx context.Context, v T) (T, error) {
	var zero T
	if _, err := c.b.userID(); err != nil {
		return zero, err
	}
	if err := prepare(&v); err != nil {
		return zero, err
	}
	doc, err := c.b.Create(ctx, c.name, v)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](doc)
}

// Get returns one entity or docstore.ErrNotFound.
func (c Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	doc, err := c.b.Get(ctx, c.name, id)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](doc)
}

// List runs q once.
func (c Collection[T]) List(ctx context.Context, q docstore.Query) ([]T, error) {
	docs, err := c.b.List(ctx, c.name, q)
	if err != nil {
		return nil, err
	}
	return Decode[T](docs), nil
}

// Update applies patch on top of the stored entity, validates the result and
// writes it back. Fields absent from patch keep their values, so a struct
// patch cannot clear an omitempty field; Replace writes a whole entity.
func (c Collection[T]) Update(ctx context.Context, id string, patch any) (T, error) {
	var zero T
	raw, err := json.Marshal(patch)
	if err != nil {
		return zero, errors.Wrap(err, "encode patch")
	}
	return c.Modify(ctx, id, func(v *T) error {
		return errors.Wrap(json.Unmarshal(raw, v), "apply patch")
	})
}

// Replace overwrites the stored entity with v. Fields empty in v are cleared;
// id and createdAt stay those of the stored document. A missing id fails
// with docstore.ErrNotFound.
func (c Collection[T]) Replace(ctx context.Context, id string, v T) (T, error) {
	return c.Modify(ctx, id, func(cur *T) error {
		*cur = v
		return nil
	})
}

// Modify reads the stored entity, lets fn change it and writes the validated
// result in one transaction. It fails with docstore.ErrNotFound for a
// missing id. The returned entity carries the stored id and timestamps
// whatever fn did to them.
func (c Collection[T]) Modify(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T
	doc, _, err := c.b.Transform(ctx, c.name, id, func(cur docstore.Document, exists bool) (any, bool, error) {
		if !exists {
			return nil, false, docstore.ErrNotFound
		}
		var v T
		if err := cur.Decode(&v); err != nil {
			return nil, false, err
		}
		if err := fn(&v); err != nil {
			return nil, false, err
		}
		if err := prepare(&v); err != nil {
			return nil, false, err
		}
		return v, true, nil
	})
	if err != nil {
		return zero, err
	}
	return decodeOne[T](doc)
}

// Put validates v and writes it under id, replacing any stored entity.
func (c Collection[T]) Put(ctx context.Context, id string, v T) (T, error) {
	var zero T
	if _, err := c.b.userID(); err != nil {
		return zero, err
	}
	if err := prepare(&v); err != nil {
		return zero, err
	}
	doc, err := c.b.Set(ctx, c.name, id, v, false)
	if err != nil {
		return zero, err
	}
	return decodeOne[T](doc)
}

// Delete removes an entity. Missing ids succeed.
func (c Collection[T]) Delete(ctx context.Context, id string) error {
	return c.b.Delete(ctx, c.name, id)
}

// Bind subscribes fn to q with decoded entities.
func (c Collection[T]) Bind(ctx context.Context, q docstore.Query, fn func([]T)) (*Subscription, error) {
	return c.b.Bind(ctx, c.name, q, func(docs []docstore.Document) {
		fn(Decode[T](docs))
	})
}

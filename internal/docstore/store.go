// Package docstore keeps per-user collections of JSON documents in sqlite and
// publishes a change signal for every write.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"neurodash/internal/database"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a document addressed by id does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrNotObject is returned when a payload does not encode to a JSON object.
	ErrNotObject = errors.New("document payload must be a JSON object")
)

// Document is one stored record. Data holds the payload without the
// store-maintained fields.
type Document struct {
	ID        string
	Data      json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JSON returns the payload with id, createdAt and updatedAt merged in.
func (d Document) JSON() ([]byte, error) {
	fields := map[string]json.RawMessage{}
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &fields); err != nil {
			return nil, errors.Wrap(err, "decode document")
		}
	}
	put := func(k string, v any) {
		b, _ := json.Marshal(v)
		fields[k] = b
	}
	put(FieldID, d.ID)
	put(FieldCreatedAt, d.CreatedAt.UTC().Format(time.RFC3339Nano))
	put(FieldUpdatedAt, d.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return json.Marshal(fields)
}

// Decode unmarshals the document, including its id and timestamps, into v.
func (d Document) Decode(v any) error {
	b, err := d.JSON()
	if err != nil {
		return err
	}
	return errors.Wrap(json.Unmarshal(b, v), "decode document")
}

type watchKey struct {
	userID     int
	collection string
}

// Store is safe for concurrent use.
type Store struct {
	db  *sql.DB
	now func() time.Time

	mu       sync.Mutex
	watchers map[watchKey]map[chan struct{}]struct{}
}

func New(db *sql.DB) *Store {
	return &Store{
		db:       db,
		now:      time.Now,
		watchers: make(map[watchKey]map[chan struct{}]struct{}),
	}
}

// Create stores data under a fresh id with server-assigned timestamps.
func (s *Store) Create(ctx context.Context, userID int, collection string, data any) (Document, error) {
	fields, err := toFields(data)
	if err != nil {
		return Document{}, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return Document{}, errors.Wrap(err, "encode document")
	}

	now := s.now().UTC()
	doc := Document{ID: uuid.NewString(), Data: raw, CreatedAt: now, UpdatedAt: now}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (user_id, collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		userID, collection, doc.ID, string(raw), database.FormatTime(now), database.FormatTime(now))
	if err != nil {
		return Document{}, errors.Wrapf(err, "create %s document", collection)
	}

	s.notify(userID, collection)
	return doc, nil
}

// Get returns one document or ErrNotFound.
func (s *Store) Get(ctx context.Context, userID int, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, data, created_at, updated_at FROM documents WHERE user_id = ? AND collection = ? AND id = ?",
		userID, collection, id)
	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	return doc, nil
}

// List returns the documents of a collection matching q.
func (s *Store) List(ctx context.Context, userID int, collection string, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, data, created_at, updated_at FROM documents WHERE user_id = ? AND collection = ?")
	args := q.build(&sb, []any{userID, collection}, true)

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", collection)
		}
		docs = append(docs, doc)
	}
	return docs, errors.Wrapf(rows.Err(), "list %s", collection)
}

// Count returns the number of documents matching q's filters.
func (s *Store) Count(ctx context.Context, userID int, collection string, q Query) (int, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM documents WHERE user_id = ? AND collection = ?")
	args := q.build(&sb, []any{userID, collection}, false)

	var n int
	if err := s.db.QueryRowContext(ctx, sb.String(), args...).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count %s", collection)
	}
	return n, nil
}

// Update merges fields into an existing document. Fields not named are kept.
func (s *Store) Update(ctx context.Context, userID int, collection, id string, fields any) (Document, error) {
	patch, err := toFields(fields)
	if err != nil {
		return Document{}, err
	}
	doc, _, err := s.Transform(ctx, userID, collection, id, func(cur Document, exists bool) (any, bool, error) {
		if !exists {
			return nil, false, ErrNotFound
		}
		merged, err := mergeFields(cur.Data, patch)
		return merged, true, err
	})
	return doc, err
}

// Set writes data under id, creating the document if needed. With merge the
// existing fields not named in data are kept; otherwise they are replaced.
func (s *Store) Set(ctx context.Context, userID int, collection, id string, data any, merge bool) (Document, error) {
	patch, err := toFields(data)
	if err != nil {
		return Document{}, err
	}
	doc, _, err := s.Transform(ctx, userID, collection, id, func(cur Document, exists bool) (any, bool, error) {
		if exists && merge {
			merged, err := mergeFields(cur.Data, patch)
			return merged, true, err
		}
		return patch, true, nil
	})
	return doc, err
}

// TransformFunc receives the current document (zero value when missing) and
// returns the next payload. Returning write=false leaves the document as is.
type TransformFunc func(cur Document, exists bool) (next any, write bool, err error)

// Transform reads and rewrites one document inside a transaction. It reports
// whether a write happened.
func (s *Store) Transform(ctx context.Context, userID int, collection, id string, fn TransformFunc) (Document, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, false, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT id, data, created_at, updated_at FROM documents WHERE user_id = ? AND collection = ? AND id = ?",
		userID, collection, id)
	cur, err := scanDocument(row)
	exists := true
	if err == sql.ErrNoRows {
		exists = false
		cur = Document{}
	} else if err != nil {
		return Document{}, false, errors.Wrapf(err, "get %s/%s", collection, id)
	}

	next, write, err := fn(cur, exists)
	if err != nil {
		return Document{}, false, err
	}
	if !write {
		return cur, false, nil
	}

	fields, err := toFields(next)
	if err != nil {
		return Document{}, false, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return Document{}, false, errors.Wrap(err, "encode document")
	}

	now := s.now().UTC()
	doc := Document{ID: id, Data: raw, CreatedAt: now, UpdatedAt: now}
	if exists {
		doc.CreatedAt = cur.CreatedAt
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET data = ?, updated_at = ? WHERE user_id = ? AND collection = ? AND id = ?",
			string(raw), database.FormatTime(now), userID, collection, id)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO documents (user_id, collection, id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			userID, collection, id, string(raw), database.FormatTime(now), database.FormatTime(now))
	}
	if err != nil {
		return Document{}, false, errors.Wrapf(err, "write %s/%s", collection, id)
	}
	if err := tx.Commit(); err != nil {
		return Document{}, false, errors.Wrap(err, "commit")
	}

	s.notify(userID, collection)
	return doc, true, nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (s *Store) Delete(ctx context.Context, userID int, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE user_id = ? AND collection = ? AND id = ?",
		userID, collection, id)
	if err != nil {
		return errors.Wrapf(err, "delete %s/%s", collection, id)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.notify(userID, collection)
	}
	return nil
}

// Watch returns a channel that receives a value after any committed write to
// the collection. Signals coalesce: a slow reader sees at most one pending
// signal. cancel stops delivery and closes the channel.
func (s *Store) Watch(userID int, collection string) (<-chan struct{}, func()) {
	key := watchKey{userID: userID, collection: collection}
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	set, ok := s.watchers[key]
	if !ok {
		set = make(map[chan struct{}]struct{})
		s.watchers[key] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if set, ok := s.watchers[key]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(s.watchers, key)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Watchers returns the number of open watches, for metrics and tests.
func (s *Store) Watchers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.watchers {
		n += len(set)
	}
	return n
}

func (s *Store) notify(userID int, collection string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.watchers[watchKey{userID: userID, collection: collection}] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (Document, error) {
	var (
		doc              Document
		data             string
		created, updated any
	)
	if err := row.Scan(&doc.ID, &data, &created, &updated); err != nil {
		return Document{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.CreatedAt, _ = database.ParseTime(created)
	doc.UpdatedAt, _ = database.ParseTime(updated)
	return doc, nil
}

// toFields encodes v as a JSON object and drops the store-maintained fields.
func toFields(v any) (map[string]json.RawMessage, error) {
	if v == nil {
		return map[string]json.RawMessage{}, nil
	}
	if fields, ok := v.(map[string]json.RawMessage); ok {
		out := make(map[string]json.RawMessage, len(fields))
		for k, val := range fields {
			out[k] = val
		}
		stripReserved(out)
		return out, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil || fields == nil {
		return nil, ErrNotObject
	}
	stripReserved(fields)
	return fields, nil
}

func stripReserved(fields map[string]json.RawMessage) {
	delete(fields, FieldID)
	delete(fields, FieldCreatedAt)
	delete(fields, FieldUpdatedAt)
}

func mergeFields(current json.RawMessage, patch map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &merged); err != nil {
			return nil, errors.Wrap(err, "decode document")
		}
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged, nil
}

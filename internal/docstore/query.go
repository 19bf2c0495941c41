package docstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Op is a comparison operator usable in a Filter.
type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
	OpGt  Op = ">"
	OpLt  Op = "<"
)

// Fields maintained by the store rather than the payload.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Filter restricts a query to documents whose field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query is a filtered, ordered read of one collection. The zero value lists
// everything ordered by creation time.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// Where returns a copy of q with an extra filter.
func (q Query) Where(field string, op Op, value any) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// Order returns a copy of q ordered by field.
func (q Query) Order(field string, desc bool) Query {
	q.OrderBy = field
	q.Desc = desc
	return q
}

// Range is the common window query: from <= field <= to, ordered by field.
// Empty bounds are left open.
func Range(field, from, to string) Query {
	q := Query{OrderBy: field}
	if from != "" {
		q = q.Where(field, OpGte, from)
	}
	if to != "" {
		q = q.Where(field, OpLte, to)
	}
	return q
}

// ErrInvalidQuery is wrapped by every error Validate returns.
var ErrInvalidQuery = errors.New("invalid query")

// Validate checks field names and operators.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if !fieldPattern.MatchString(f.Field) {
			return errors.Wrapf(ErrInvalidQuery, "filter field %q", f.Field)
		}
		switch f.Op {
		case OpEq, OpGte, OpLte, OpGt, OpLt:
		default:
			return errors.Wrapf(ErrInvalidQuery, "filter operator %q", f.Op)
		}
	}
	if q.OrderBy != "" && !fieldPattern.MatchString(q.OrderBy) {
		return errors.Wrapf(ErrInvalidQuery, "order field %q", q.OrderBy)
	}
	if q.Limit < 0 {
		return errors.Wrapf(ErrInvalidQuery, "limit %d", q.Limit)
	}
	return nil
}

// String renders q for logs and metric labels.
func (q Query) String() string {
	var parts []string
	for _, f := range q.Filters {
		parts = append(parts, fmt.Sprintf("%s %s %v", f.Field, f.Op, f.Value))
	}
	s := strings.Join(parts, " && ")
	if q.OrderBy != "" {
		dir := "asc"
		if q.Desc {
			dir = "desc"
		}
		s = strings.TrimSpace(s + " order by " + q.OrderBy + " " + dir)
	}
	return s
}

// column maps a field to its SQL expression and whether the field name must
// be bound as a JSON path argument.
func column(field string) (expr string, bindPath bool) {
	switch field {
	case FieldCreatedAt:
		return "created_at", false
	case FieldUpdatedAt:
		return "updated_at", false
	case FieldID:
		return "id", false
	default:
		return "json_extract(data, ?)", true
	}
}

func jsonPath(field string) string {
	return "$." + field
}

// build appends the WHERE and ORDER BY clauses of q.
func (q Query) build(sb *strings.Builder, args []any, withOrder bool) []any {
	for _, f := range q.Filters {
		expr, bind := column(f.Field)
		sb.WriteString(" AND ")
		sb.WriteString(expr)
		if bind {
			args = append(args, jsonPath(f.Field))
		}
		op := string(f.Op)
		if f.Op == OpEq {
			op = "="
		}
		sb.WriteString(" " + op + " ?")
		args = append(args, f.Value)
	}

	if !withOrder {
		return args
	}

	dir := " ASC"
	if q.Desc {
		dir = " DESC"
	}
	sb.WriteString(" ORDER BY ")
	if q.OrderBy != "" {
		expr, bind := column(q.OrderBy)
		sb.WriteString(expr + dir + ", ")
		if bind {
			args = append(args, jsonPath(q.OrderBy))
		}
	}
	sb.WriteString("created_at" + dir + ", rowid" + dir)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return args
}
